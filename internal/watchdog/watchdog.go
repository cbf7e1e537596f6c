package watchdog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/edvin/nodewatch/internal/model"
)

var (
	cycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_cycles_total",
			Help: "Watchdog evaluation cycles by result.",
		},
		[]string{"result"},
	)
	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_transitions_total",
			Help: "Announced node status transitions by direction.",
		},
		[]string{"direction"},
	)
	notifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchdog_notify_failures_total",
			Help: "Alert deliveries that failed.",
		},
	)
)

// Registry is the slice of node storage the watchdog needs.
type Registry interface {
	List(ctx context.Context, now time.Time) ([]model.NodeView, error)
	SetAlertedStatus(ctx context.Context, nodeID string, status model.Status) error
}

// Notifier delivers status transition alerts.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Watchdog periodically compares each node's computed liveness against the
// status it was last announced as and alerts on every transition. New nodes
// start announced as DOWN, so first contact produces an UP alert.
type Watchdog struct {
	registry Registry
	notifier Notifier
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func New(registry Registry, notifier Notifier, interval time.Duration, logger zerolog.Logger) *Watchdog {
	return &Watchdog{
		registry: registry,
		notifier: notifier,
		interval: interval,
		logger:   logger.With().Str("component", "watchdog").Logger(),
		now:      time.Now,
	}
}

// Run executes cycles on the configured interval until the context is
// canceled. The first cycle runs immediately so restarts re-announce any
// transition that happened while the process was down.
func (w *Watchdog) Run(ctx context.Context) {
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("watchdog stopping")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Watchdog) runOnce(ctx context.Context) {
	if err := w.Cycle(ctx); err != nil {
		cycles.WithLabelValues("error").Inc()
		w.logger.Error().Err(err).Msg("watchdog cycle failed")
		return
	}
	cycles.WithLabelValues("ok").Inc()
}

// Cycle evaluates every node once. The alerted status is advanced even when
// the alert delivery fails, trading a possibly lost alert for never flooding
// the channel with repeats of the same transition.
func (w *Watchdog) Cycle(ctx context.Context) error {
	now := w.now()
	nodes, err := w.registry.List(ctx, now)
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}

	for _, node := range nodes {
		if node.ComputedStatus == node.AlertedStatus {
			continue
		}

		direction := strings.ToLower(string(node.ComputedStatus))
		transitions.WithLabelValues(direction).Inc()
		w.logger.Info().
			Str("node_id", node.NodeID).
			Str("from", string(node.AlertedStatus)).
			Str("to", string(node.ComputedStatus)).
			Int64("age_sec", node.AgeSec).
			Msg("node status transition")

		if err := w.notifier.Send(ctx, formatAlert(node, now)); err != nil {
			notifyFailures.Inc()
			w.logger.Warn().Err(err).Str("node_id", node.NodeID).Msg("alert delivery failed")
		}

		if err := w.registry.SetAlertedStatus(ctx, node.NodeID, node.ComputedStatus); err != nil {
			return fmt.Errorf("advance alerted status for %s: %w", node.NodeID, err)
		}
	}
	return nil
}

func formatAlert(node model.NodeView, now time.Time) string {
	icon, verb := "✅", "UP"
	if node.ComputedStatus == model.StatusDown {
		icon, verb = "❌", "DOWN"
	}
	return fmt.Sprintf("%s *Node %s*\nNode ID: `%s`\nIP: `%s`\nAge: `%ds`\nTime: `%s`",
		icon, verb, node.NodeID, node.IP, node.AgeSec, now.UTC().Format("2006-01-02 15:04:05"))
}
