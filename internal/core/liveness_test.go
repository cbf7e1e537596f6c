package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edvin/nodewatch/internal/model"
)

func TestComputeStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	threshold := 180 * time.Second

	tests := []struct {
		name     string
		lastSeen time.Time
		reported model.Status
		want     model.Status
	}{
		{"fresh and reported up", now.Add(-60 * time.Second), model.StatusUp, model.StatusUp},
		{"exactly at threshold", now.Add(-180 * time.Second), model.StatusUp, model.StatusUp},
		{"one second past threshold", now.Add(-181 * time.Second), model.StatusUp, model.StatusDown},
		{"stale", now.Add(-time.Hour), model.StatusUp, model.StatusDown},
		{"fresh but reported down", now.Add(-10 * time.Second), model.StatusDown, model.StatusDown},
		{"stale and reported down", now.Add(-time.Hour), model.StatusDown, model.StatusDown},
		{"heartbeat from the future", now.Add(30 * time.Second), model.StatusUp, model.StatusUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStatus(tt.lastSeen, tt.reported, now, threshold))
		})
	}
}

func TestComputeStatus_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lastSeen := now.Add(-90 * time.Second)

	first := ComputeStatus(lastSeen, model.StatusUp, now, 180*time.Second)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ComputeStatus(lastSeen, model.StatusUp, now, 180*time.Second))
	}
}

func TestAgeSeconds(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(90), AgeSeconds(now.Add(-90*time.Second), now))
	assert.Equal(t, int64(0), AgeSeconds(now, now))
	// Clock skew never produces a negative age.
	assert.Equal(t, int64(0), AgeSeconds(now.Add(30*time.Second), now))
}

func TestNormalizeStatus_FailSafeDown(t *testing.T) {
	assert.Equal(t, model.StatusUp, model.NormalizeStatus("UP"))
	assert.Equal(t, model.StatusUp, model.NormalizeStatus(" up "))
	assert.Equal(t, model.StatusDown, model.NormalizeStatus("down"))
	assert.Equal(t, model.StatusDown, model.NormalizeStatus(""))
	assert.Equal(t, model.StatusDown, model.NormalizeStatus("SLEEPING"))
	assert.Equal(t, model.StatusDown, model.NormalizeStatus("up!"))
}
