package model

import (
	"strings"
	"time"
)

// Status is a node liveness state, either as reported by the node itself or
// as computed from heartbeat recency.
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// NormalizeStatus coerces arbitrary status input to a valid Status. Anything
// that is not UP or DOWN after trimming and upcasing becomes DOWN, so an
// ambiguous report can never keep a node looking healthy.
func NormalizeStatus(raw string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusUp:
		return StatusUp
	case StatusDown:
		return StatusDown
	default:
		return StatusDown
	}
}

// NodeRecord is one monitored node, keyed by its stable node ID.
type NodeRecord struct {
	NodeID           string           `json:"node_id"`
	IP               string           `json:"ip"`
	Meta             *string          `json:"meta"`
	LastSeen         time.Time        `json:"last_seen"`
	ReportedStatus   Status           `json:"reported_status"`
	AlertedStatus    Status           `json:"alerted_status"`
	PeerIDs          []string         `json:"peer_ids"`
	ExternalAccount  *string          `json:"external_account"`
	OffchainIdentity *string          `json:"offchain_identity"`
	AlertEnabled     bool             `json:"alert_enabled"`
	Metrics          *MetricsSnapshot `json:"metrics,omitempty"`
	MetricsUpdatedAt *time.Time       `json:"metrics_updated_at"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Heartbeat carries the fields a node reports about itself in one check-in.
type Heartbeat struct {
	NodeID           string
	IP               string
	Meta             *string
	ReportedStatus   Status
	PeerIDs          []string
	ExternalAccount  *string
	OffchainIdentity *string
	SeenAt           time.Time
}

// NodeView is a NodeRecord projection with liveness derived at read time.
// ComputedStatus depends on the wall clock and is never stored as ground
// truth.
type NodeView struct {
	NodeRecord
	ComputedStatus Status `json:"computed_status"`
	AgeSec         int64  `json:"age_sec"`
}
