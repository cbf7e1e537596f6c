package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/nodewatch/internal/model"
)

func intPtr(n int) *int { return &n }

func snapshotOf(perPeer map[string]model.PeerMetrics, at time.Time) *model.MetricsSnapshot {
	snap := &model.MetricsSnapshot{PerPeer: perPeer, LastCheck: at}
	for _, pm := range perPeer {
		snap.Totals.Wins += pm.Wins
		snap.Totals.Rewards += pm.Rewards
		if pm.Wins > 0 {
			snap.Totals.Ranked++
		}
	}
	snap.Totals.Peers = len(perPeer)
	return snap
}

func TestMerge_NilCases(t *testing.T) {
	now := time.Now()
	old := snapshotOf(map[string]model.PeerMetrics{"p1": {Wins: 1}}, now)

	got, persist := Merge(PolicyMerge, nil, nil)
	assert.Nil(t, got)
	assert.False(t, persist)

	got, persist = Merge(PolicyMerge, old, nil)
	assert.Equal(t, old, got)
	assert.False(t, persist, "a nil fresh snapshot must never trigger a write")

	fresh := snapshotOf(map[string]model.PeerMetrics{"p1": {Wins: 2}}, now)
	got, persist = Merge(PolicyMerge, nil, fresh)
	assert.Equal(t, fresh, got)
	assert.True(t, persist)
}

func TestMerge_CountersNeverRegress(t *testing.T) {
	now := time.Now()
	old := snapshotOf(map[string]model.PeerMetrics{
		"p1": {Wins: 10, Rewards: 5, WinsSource: "on", RewardsSource: "on"},
	}, now.Add(-time.Hour))
	fresh := snapshotOf(map[string]model.PeerMetrics{
		"p1": {Wins: 7, Rewards: 5, WinsSource: "off", RewardsSource: "off"},
	}, now)

	got, persist := Merge(PolicyMerge, old, fresh)
	require.True(t, persist)

	pm := got.PerPeer["p1"]
	assert.Equal(t, int64(10), pm.Wins)
	assert.Equal(t, "on", pm.WinsSource, "keeping the old value keeps its source tag")
	assert.Equal(t, int64(5), pm.Rewards)
	assert.Equal(t, "off", pm.RewardsSource, "equal fresh value wins, with its own tag")
	assert.Equal(t, now, got.LastCheck)
	assert.Equal(t, int64(10), got.Totals.Wins)
}

func TestMerge_RetainsPeersMissingFromFreshRound(t *testing.T) {
	now := time.Now()
	old := snapshotOf(map[string]model.PeerMetrics{
		"p1": {Wins: 10, Rewards: 4, Rank: intPtr(3)},
		"p2": {Wins: 2, Rewards: 1},
	}, now.Add(-time.Hour))
	fresh := snapshotOf(map[string]model.PeerMetrics{
		"p2": {Wins: 3, Rewards: 1},
	}, now)

	got, persist := Merge(PolicyMerge, old, fresh)
	require.True(t, persist)

	assert.Len(t, got.PerPeer, 2)
	assert.Equal(t, int64(10), got.PerPeer["p1"].Wins, "peer absent from an empty round keeps last known values")
	assert.Equal(t, int64(3), got.PerPeer["p2"].Wins)
	assert.Equal(t, int64(13), got.Totals.Wins)
	assert.Equal(t, 2, got.Totals.Peers)
	assert.Equal(t, 2, got.Totals.Ranked)
}

func TestMerge_RankRetainedWhenFreshHasNone(t *testing.T) {
	now := time.Now()
	old := snapshotOf(map[string]model.PeerMetrics{"p1": {Wins: 5, Rank: intPtr(7)}}, now.Add(-time.Hour))
	fresh := snapshotOf(map[string]model.PeerMetrics{"p1": {Wins: 6}}, now)

	got, _ := Merge(PolicyMerge, old, fresh)
	require.NotNil(t, got.PerPeer["p1"].Rank)
	assert.Equal(t, 7, *got.PerPeer["p1"].Rank)
}

func TestMerge_RankKeepsBestOfBoth(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		old   *int
		fresh *int
		want  int
	}{
		{"stored rank is better", intPtr(3), intPtr(10), 3},
		{"fresh rank is better", intPtr(10), intPtr(4), 4},
		{"equal ranks", intPtr(5), intPtr(5), 5},
		{"no stored rank", nil, intPtr(8), 8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			old := snapshotOf(map[string]model.PeerMetrics{"p1": {Wins: 5, Rank: tc.old}}, now.Add(-time.Hour))
			fresh := snapshotOf(map[string]model.PeerMetrics{"p1": {Wins: 6, Rank: tc.fresh}}, now)

			got, _ := Merge(PolicyMerge, old, fresh)
			require.NotNil(t, got.PerPeer["p1"].Rank)
			assert.Equal(t, tc.want, *got.PerPeer["p1"].Rank)
		})
	}
}

func TestMerge_OverwritePolicy(t *testing.T) {
	now := time.Now()
	old := snapshotOf(map[string]model.PeerMetrics{
		"p1": {Wins: 10, Rewards: 5},
		"p2": {Wins: 4},
	}, now.Add(-time.Hour))
	fresh := snapshotOf(map[string]model.PeerMetrics{"p1": {Wins: 7, Rewards: 5}}, now)

	got, persist := Merge(PolicyOverwrite, old, fresh)
	require.True(t, persist)
	assert.Equal(t, fresh, got, "overwrite drops stored peers and regressed counters alike")
}

func TestMerge_MissingPeersRecomputed(t *testing.T) {
	now := time.Now()
	old := snapshotOf(map[string]model.PeerMetrics{"p1": {}}, now.Add(-time.Hour))
	old.MissingPeers = []string{"p1"}
	fresh := snapshotOf(map[string]model.PeerMetrics{
		"p1": {Wins: 2},
		"p2": {},
	}, now)
	fresh.MissingPeers = []string{"p2"}

	got, _ := Merge(PolicyMerge, old, fresh)
	assert.Equal(t, []string{"p2"}, got.MissingPeers)
}
