package core

import (
	"time"

	"github.com/edvin/nodewatch/internal/model"
)

// ComputeStatus derives a node's liveness from heartbeat recency and its own
// report. A node is UP only while its last heartbeat is within threshold and
// it reported itself UP; everything else is DOWN. Pure and deterministic
// given now.
func ComputeStatus(lastSeen time.Time, reported model.Status, now time.Time, threshold time.Duration) model.Status {
	if now.Sub(lastSeen) <= threshold && reported == model.StatusUp {
		return model.StatusUp
	}
	return model.StatusDown
}

// AgeSeconds returns the whole seconds since lastSeen, clamped at zero.
func AgeSeconds(lastSeen, now time.Time) int64 {
	age := int64(now.Sub(lastSeen).Seconds())
	if age < 0 {
		return 0
	}
	return age
}
