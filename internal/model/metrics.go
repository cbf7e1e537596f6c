package model

import "time"

// PeerMetrics holds the reconciled win/reward counters for one peer
// identifier, along with where each value was sourced from ("on", "off"
// or "none").
type PeerMetrics struct {
	Wins          int64  `json:"wins"`
	Rewards       int64  `json:"rewards"`
	Rank          *int   `json:"rank,omitempty"`
	WinsSource    string `json:"wins_src,omitempty"`
	RewardsSource string `json:"rewards_src,omitempty"`
}

// MetricsTotals aggregates the per-peer values of a snapshot.
type MetricsTotals struct {
	Wins    int64 `json:"wins"`
	Rewards int64 `json:"rewards"`
	Peers   int   `json:"peers"`
	Ranked  int   `json:"ranked"`
}

// MetricsSnapshot is the stored metrics blob for one node.
type MetricsSnapshot struct {
	PerPeer      map[string]PeerMetrics `json:"per_peer"`
	Totals       MetricsTotals          `json:"totals"`
	MissingPeers []string               `json:"missing_peers,omitempty"`
	LastCheck    time.Time              `json:"last_check"`
}
