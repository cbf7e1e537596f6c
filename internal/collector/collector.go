package collector

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/nodewatch/internal/model"
	"github.com/edvin/nodewatch/internal/offchain"
)

const (
	defaultWorkers = 4
	defaultJitter  = 150 * time.Millisecond
)

// LedgerProvider is the authoritative on-chain source.
type LedgerProvider interface {
	PeerIDs(ctx context.Context, accounts []string) (map[string][]string, error)
	Wins(ctx context.Context, peerID string) (int64, error)
	Rewards(ctx context.Context, peerID string) (int64, error)
}

// OffchainProvider is the secondary source, queried per auth-scope identity.
type OffchainProvider interface {
	Stats(ctx context.Context, identity string, peerIDs []string) (map[string]offchain.PeerStats, error)
}

// CollectRequest describes one node's metrics configuration.
type CollectRequest struct {
	// PeerIDs are explicitly supplied peer identifiers.
	PeerIDs []string
	// Accounts are external addresses resolved to peer IDs via the ledger.
	Accounts []string
	// Groups maps an off-chain identity to the peers queried under it.
	// Peers in no group are queried under DefaultIdentity.
	Groups map[string][]string
	// DefaultIdentity is the fallback auth scope. Empty disables off-chain
	// lookups for ungrouped peers.
	DefaultIdentity string
}

// Collector queries the providers for a set of peers and reconciles the
// results into a snapshot.
type Collector struct {
	ledger   LedgerProvider
	offchain OffchainProvider
	logger   zerolog.Logger

	workers int
	jitter  time.Duration
	now     func() time.Time
}

func New(ledger LedgerProvider, off OffchainProvider, logger zerolog.Logger) *Collector {
	return &Collector{
		ledger:   ledger,
		offchain: off,
		logger:   logger.With().Str("component", "collector").Logger(),
		workers:  defaultWorkers,
		jitter:   defaultJitter,
		now:      time.Now,
	}
}

type onchainResult struct {
	wins      int64
	winsOK    bool
	rewards   int64
	rewardsOK bool
}

// Collect resolves the peer set, queries both providers and reconciles the
// values per peer. Individual provider failures degrade that peer to
// zero/absent values; the error return is reserved for a total collection
// failure, in which case the caller must leave stored metrics untouched.
func (c *Collector) Collect(ctx context.Context, req CollectRequest) (*model.MetricsSnapshot, error) {
	peers, err := c.resolvePeers(ctx, req)
	if err != nil {
		return nil, err
	}

	snap := &model.MetricsSnapshot{
		PerPeer:   make(map[string]model.PeerMetrics, len(peers)),
		LastCheck: c.now().UTC(),
	}
	if len(peers) == 0 {
		return snap, nil
	}

	attempted, succeeded := 0, 0
	var lastErr error

	// On-chain, fanned out with a bounded worker count and a small jitter
	// delay per call as a courtesy throttle.
	onResults := make([]onchainResult, len(peers))
	if c.ledger != nil {
		attempted++
		var onErrs []error
		g := new(errgroup.Group)
		g.SetLimit(c.workers)
		errCh := make(chan error, 2*len(peers))
		for i, pid := range peers {
			g.Go(func() error {
				c.throttle()
				if w, werr := c.ledger.Wins(ctx, pid); werr == nil {
					onResults[i].wins, onResults[i].winsOK = w, true
				} else {
					errCh <- werr
				}
				if r, rerr := c.ledger.Rewards(ctx, pid); rerr == nil {
					onResults[i].rewards, onResults[i].rewardsOK = r, true
				} else {
					errCh <- rerr
				}
				return nil
			})
		}
		g.Wait()
		close(errCh)
		for e := range errCh {
			onErrs = append(onErrs, e)
		}

		anyOnChain := false
		for _, r := range onResults {
			if r.winsOK || r.rewardsOK {
				anyOnChain = true
				break
			}
		}
		if anyOnChain {
			succeeded++
		} else if len(onErrs) > 0 {
			lastErr = onErrs[len(onErrs)-1]
			c.logger.Warn().Err(lastErr).Int("peers", len(peers)).Msg("on-chain lookups failed for every peer")
		}
	}

	// Off-chain, one request batch per identity group.
	offPer := make(map[string]offchain.PeerStats)
	if c.offchain != nil {
		for identity, ids := range c.groupPeers(req, peers) {
			if identity == "" {
				continue
			}
			attempted++
			stats, serr := c.offchain.Stats(ctx, identity, ids)
			if serr != nil {
				lastErr = serr
				c.logger.Warn().Err(serr).Msg("off-chain group lookup failed")
				continue
			}
			succeeded++
			for pid, st := range stats {
				offPer[pid] = st
			}
		}
	}

	if attempted > 0 && succeeded == 0 {
		return nil, fmt.Errorf("metrics collection failed for all providers: %w", lastErr)
	}

	for i, pid := range peers {
		off := offPer[pid]
		wins, winsSrc := resolveWins(onResults[i].wins, off.Wins)
		rewards, rewardsSrc := resolveRewards(onResults[i].rewardsOK, onResults[i].rewards, off.Rewards)

		pm := model.PeerMetrics{
			Wins:          wins,
			Rewards:       rewards,
			WinsSource:    string(winsSrc),
			RewardsSource: string(rewardsSrc),
		}
		if off.Rank > 0 {
			rank := off.Rank
			pm.Rank = &rank
		}
		snap.PerPeer[pid] = pm

		snap.Totals.Wins += wins
		snap.Totals.Rewards += rewards
		if wins > 0 {
			snap.Totals.Ranked++
		}
		// A peer with nothing from either provider stays in the snapshot:
		// "unknown" is distinct from "deleted".
		if wins == 0 && rewards == 0 && pm.Rank == nil {
			snap.MissingPeers = append(snap.MissingPeers, pid)
		}
	}
	snap.Totals.Peers = len(peers)

	return snap, nil
}

// resolvePeers unions ledger-resolved and explicitly supplied peer IDs,
// deduplicated preserving first-seen order. Peers named only in off-chain
// groups are included as well.
func (c *Collector) resolvePeers(ctx context.Context, req CollectRequest) ([]string, error) {
	var ordered []string

	if c.ledger != nil && len(req.Accounts) > 0 {
		resolved, err := c.ledger.PeerIDs(ctx, req.Accounts)
		if err != nil {
			if len(req.PeerIDs) == 0 && len(req.Groups) == 0 {
				return nil, fmt.Errorf("resolve peers: %w", err)
			}
			c.logger.Warn().Err(err).Msg("account resolution failed, continuing with explicit peers")
		}
		for _, account := range req.Accounts {
			key := strings.ToLower(strings.TrimSpace(account))
			ordered = append(ordered, resolved[key]...)
		}
	}

	ordered = append(ordered, req.PeerIDs...)
	for _, ids := range req.Groups {
		ordered = append(ordered, ids...)
	}

	return dedupe(ordered), nil
}

// groupPeers assigns every peer to an off-chain identity group. Callers
// supplying no explicit grouping fall back to a single default group.
func (c *Collector) groupPeers(req CollectRequest, peers []string) map[string][]string {
	if len(req.Groups) == 0 {
		if req.DefaultIdentity == "" {
			return nil
		}
		return map[string][]string{req.DefaultIdentity: peers}
	}

	groups := make(map[string][]string, len(req.Groups)+1)
	grouped := make(map[string]struct{})
	for rawIdentity, ids := range req.Groups {
		identity := strings.TrimSpace(rawIdentity)
		if identity == "" {
			identity = req.DefaultIdentity
		}
		for _, pid := range dedupe(ids) {
			groups[identity] = append(groups[identity], pid)
			grouped[pid] = struct{}{}
		}
	}

	// Ungrouped remainder falls into the default group.
	for _, pid := range peers {
		if _, ok := grouped[pid]; !ok {
			groups[req.DefaultIdentity] = append(groups[req.DefaultIdentity], pid)
		}
	}
	return groups
}

func (c *Collector) throttle() {
	if c.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(c.jitter))))
	}
}

// dedupe trims and deduplicates preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
