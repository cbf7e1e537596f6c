package collector

import (
	"sort"

	"github.com/edvin/nodewatch/internal/model"
)

// Policy selects how a fresh snapshot combines with the stored one.
type Policy string

const (
	// PolicyMerge keeps counters non-regressing and retains peers a
	// transiently empty round did not report.
	PolicyMerge Policy = "merge"
	// PolicyOverwrite replaces the stored snapshot wholesale.
	PolicyOverwrite Policy = "overwrite"
)

// Merge combines a freshly collected snapshot with the stored one. The
// boolean reports whether the result should be written back; a nil fresh
// snapshot never triggers a write.
func Merge(policy Policy, old, fresh *model.MetricsSnapshot) (*model.MetricsSnapshot, bool) {
	switch {
	case fresh == nil && old == nil:
		return nil, false
	case fresh == nil:
		return old, false
	case old == nil || policy == PolicyOverwrite:
		return fresh, true
	}

	merged := &model.MetricsSnapshot{
		PerPeer:   make(map[string]model.PeerMetrics, len(fresh.PerPeer)),
		LastCheck: fresh.LastCheck,
	}

	ids := make(map[string]struct{}, len(old.PerPeer)+len(fresh.PerPeer))
	for pid := range old.PerPeer {
		ids[pid] = struct{}{}
	}
	for pid := range fresh.PerPeer {
		ids[pid] = struct{}{}
	}

	for pid := range ids {
		prev, hadPrev := old.PerPeer[pid]
		pm, hadNext := fresh.PerPeer[pid]

		if !hadNext {
			// A peer absent from this round keeps its last known values.
			// Transient provider gaps must not erase history.
			pm = prev
		} else if hadPrev {
			if prev.Wins > pm.Wins {
				pm.Wins = prev.Wins
				pm.WinsSource = prev.WinsSource
			}
			if prev.Rewards > pm.Rewards {
				pm.Rewards = prev.Rewards
				pm.RewardsSource = prev.RewardsSource
			}
			// Lower rank is better; keep the best of the two, falling back
			// to the stored rank when this round reported none.
			if pm.Rank == nil {
				pm.Rank = prev.Rank
			} else if prev.Rank != nil && *prev.Rank < *pm.Rank {
				pm.Rank = prev.Rank
			}
		}
		merged.PerPeer[pid] = pm

		merged.Totals.Wins += pm.Wins
		merged.Totals.Rewards += pm.Rewards
		if pm.Wins > 0 {
			merged.Totals.Ranked++
		}
		if pm.Wins == 0 && pm.Rewards == 0 && pm.Rank == nil {
			merged.MissingPeers = append(merged.MissingPeers, pid)
		}
	}
	merged.Totals.Peers = len(merged.PerPeer)
	sort.Strings(merged.MissingPeers)

	return merged, true
}
