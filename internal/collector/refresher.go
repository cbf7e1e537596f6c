package collector

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/edvin/nodewatch/internal/config"
	"github.com/edvin/nodewatch/internal/model"
)

var (
	refreshCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_refresh_cycles_total",
			Help: "Metrics refresh cycles by result.",
		},
		[]string{"result"},
	)
	refreshNodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metrics_refresh_node_failures_total",
			Help: "Per-node metrics collections that failed entirely.",
		},
	)
)

// Registry is the slice of node storage the refresher needs.
type Registry interface {
	List(ctx context.Context, now time.Time) ([]model.NodeView, error)
	SaveMetrics(ctx context.Context, nodeID string, snap *model.MetricsSnapshot) error
}

// Notifier delivers the per-cycle metrics summary.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// PeerCollector produces one node's reconciled snapshot.
type PeerCollector interface {
	Collect(ctx context.Context, req CollectRequest) (*model.MetricsSnapshot, error)
}

type RefresherConfig struct {
	Interval        time.Duration
	Policy          Policy
	DefaultIdentity string
	DefaultAccounts []string
	PeerMap         *config.PeerMap
}

// Refresher periodically collects metrics for every registered node and
// persists the result per the configured policy.
type Refresher struct {
	registry  Registry
	collector PeerCollector
	notifier  Notifier
	cfg       RefresherConfig
	logger    zerolog.Logger
	now       func() time.Time
}

func NewRefresher(registry Registry, collector PeerCollector, notifier Notifier, cfg RefresherConfig, logger zerolog.Logger) *Refresher {
	return &Refresher{
		registry:  registry,
		collector: collector,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With().Str("component", "metrics_refresher").Logger(),
		now:       time.Now,
	}
}

// Run executes refresh cycles until the context is canceled. A short random
// startup delay keeps restarts from hammering the providers in lockstep.
func (r *Refresher) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(rand.Int63n(int64(5 * time.Second)))):
	}
	r.runOnce(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("metrics refresher stopping")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context) {
	if err := r.RefreshAll(ctx); err != nil {
		refreshCycles.WithLabelValues("error").Inc()
		r.logger.Error().Err(err).Msg("metrics refresh cycle failed")
		return
	}
	refreshCycles.WithLabelValues("ok").Inc()
}

// RefreshAll runs one collection cycle over every node. A node whose
// collection fails keeps its stored snapshot untouched; only a registry
// listing failure aborts the cycle.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	nodes, err := r.registry.List(ctx, r.now())
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}

	var summaries []string
	for _, node := range nodes {
		req := r.requestFor(node.NodeRecord)
		if len(req.PeerIDs) == 0 && len(req.Accounts) == 0 && len(req.Groups) == 0 {
			continue
		}

		fresh, err := r.collector.Collect(ctx, req)
		if err != nil {
			refreshNodeFailures.Inc()
			r.logger.Warn().Err(err).Str("node_id", node.NodeID).
				Msg("collection failed, keeping stored metrics")
			continue
		}

		merged, persist := Merge(r.cfg.Policy, node.Metrics, fresh)
		if !persist {
			continue
		}
		if err := r.registry.SaveMetrics(ctx, node.NodeID, merged); err != nil {
			r.logger.Error().Err(err).Str("node_id", node.NodeID).Msg("saving metrics failed")
			continue
		}

		r.logger.Info().
			Str("node_id", node.NodeID).
			Int64("wins", merged.Totals.Wins).
			Int64("rewards", merged.Totals.Rewards).
			Int("peers", merged.Totals.Peers).
			Msg("metrics refreshed")

		if node.AlertEnabled {
			summaries = append(summaries, formatSummary(node.NodeID, merged))
		}
	}

	if len(summaries) > 0 && r.notifier != nil {
		text := "📊 *Metrics refresh*\n" + strings.Join(summaries, "\n")
		if err := r.notifier.Send(ctx, text); err != nil {
			r.logger.Warn().Err(err).Msg("metrics summary notification failed")
		}
	}
	return nil
}

// requestFor combines a node's heartbeat-supplied metrics config with the
// static peer map and process-wide defaults. Per-node settings win over the
// peer map only for peers; the peer map wins for identity.
func (r *Refresher) requestFor(rec model.NodeRecord) CollectRequest {
	req := CollectRequest{
		PeerIDs: append([]string(nil), rec.PeerIDs...),
	}

	if rec.ExternalAccount != nil && *rec.ExternalAccount != "" {
		req.Accounts = append(req.Accounts, *rec.ExternalAccount)
	}

	identity := r.cfg.DefaultIdentity
	if rec.OffchainIdentity != nil && *rec.OffchainIdentity != "" {
		identity = *rec.OffchainIdentity
	}

	if entry, ok := r.cfg.PeerMap.Entry(rec.NodeID); ok {
		req.PeerIDs = append(req.PeerIDs, entry.PeerIDs...)
		if entry.Account != "" {
			req.Accounts = append(req.Accounts, entry.Account)
		}
		if entry.OffchainIdentity != "" {
			identity = entry.OffchainIdentity
		}
	}

	if len(req.Accounts) == 0 {
		req.Accounts = append(req.Accounts, r.cfg.DefaultAccounts...)
	}
	req.DefaultIdentity = identity
	return req
}

func formatSummary(nodeID string, snap *model.MetricsSnapshot) string {
	return fmt.Sprintf("`%s`: wins `%d`, rewards `%d`, peers `%d` (`%d` ranked)",
		nodeID, snap.Totals.Wins, snap.Totals.Rewards, snap.Totals.Peers, snap.Totals.Ranked)
}
