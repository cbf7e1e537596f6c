package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edvin/nodewatch/internal/model"
)

const nodeColumns = `node_id, ip, meta, last_seen, reported_status, alerted_status,
	peer_ids, external_account, offchain_identity, alert_enabled,
	metrics_snapshot, metrics_updated_at, created_at, updated_at`

// RegistryService owns the per-node state records.
type RegistryService struct {
	db        DB
	threshold time.Duration
}

func NewRegistryService(db DB, threshold time.Duration) *RegistryService {
	return &RegistryService{db: db, threshold: threshold}
}

// Upsert creates a node record on first contact or updates the heartbeat
// fields of an existing one. New records start with alerted_status DOWN so
// the first watchdog cycle announces the node coming UP. alerted_status is
// never touched here; only the watchdog advances it. The caller must have
// normalized ReportedStatus already.
func (s *RegistryService) Upsert(ctx context.Context, hb model.Heartbeat) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO nodes (node_id, ip, meta, last_seen, reported_status, alerted_status,
		                   peer_ids, external_account, offchain_identity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'DOWN', $6, $7, $8, now(), now())
		ON CONFLICT (node_id) DO UPDATE SET
			ip                = EXCLUDED.ip,
			meta              = EXCLUDED.meta,
			last_seen         = EXCLUDED.last_seen,
			reported_status   = EXCLUDED.reported_status,
			peer_ids          = EXCLUDED.peer_ids,
			external_account  = COALESCE(EXCLUDED.external_account, nodes.external_account),
			offchain_identity = COALESCE(EXCLUDED.offchain_identity, nodes.offchain_identity),
			updated_at        = now()`,
		hb.NodeID, hb.IP, hb.Meta, hb.SeenAt, string(hb.ReportedStatus),
		hb.PeerIDs, hb.ExternalAccount, hb.OffchainIdentity)
	if err != nil {
		return fmt.Errorf("upsert node %s: %w", hb.NodeID, err)
	}
	return nil
}

// List returns every node ordered by node_id, with computed liveness and age
// derived against now.
func (s *RegistryService) List(ctx context.Context, now time.Time) ([]model.NodeView, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+nodeColumns+` FROM nodes ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var views []model.NodeView
	for rows.Next() {
		rec, err := scanNode(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		views = append(views, model.NodeView{
			NodeRecord:     *rec,
			ComputedStatus: ComputeStatus(rec.LastSeen, rec.ReportedStatus, now, s.threshold),
			AgeSec:         AgeSeconds(rec.LastSeen, now),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return views, nil
}

// Get returns a single node record.
func (s *RegistryService) Get(ctx context.Context, nodeID string) (*model.NodeRecord, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE node_id = $1`, nodeID)
	rec, err := scanNode(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", nodeID, err)
	}
	return rec, nil
}

// Rename moves a record to a new node_id. It fails with ErrConflict when the
// target ID is taken and ErrNotFound when the source is missing. Renaming an
// ID to itself is a successful no-op.
func (s *RegistryService) Rename(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return nil
	}

	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM nodes WHERE node_id = $1)`, newID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check rename target %s: %w", newID, err)
	}
	if exists {
		return ErrConflict
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE nodes SET node_id = $1, updated_at = now() WHERE node_id = $2`, newID, oldID)
	if err != nil {
		return fmt.Errorf("rename node %s: %w", oldID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a node. Deleting an unknown ID is not an error.
func (s *RegistryService) Delete(ctx context.Context, nodeID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM nodes WHERE node_id = $1`, nodeID)
	if err != nil {
		return fmt.Errorf("delete node %s: %w", nodeID, err)
	}
	return nil
}

// Prune deletes every record whose last heartbeat is older than cutoffAge and
// returns the number removed. A cutoff of zero or less is a deliberate no-op,
// never "delete everything".
func (s *RegistryService) Prune(ctx context.Context, now time.Time, cutoffAge time.Duration) (int64, error) {
	if cutoffAge <= 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM nodes WHERE last_seen < $1`, now.Add(-cutoffAge))
	if err != nil {
		return 0, fmt.Errorf("prune nodes: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetAlertEnabled toggles metrics notifications for a node. Liveness alerting
// is independent and unaffected.
func (s *RegistryService) SetAlertEnabled(ctx context.Context, nodeID string, enabled bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE nodes SET alert_enabled = $1, updated_at = now() WHERE node_id = $2`, enabled, nodeID)
	if err != nil {
		return fmt.Errorf("set alert_enabled for %s: %w", nodeID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAlertedStatus records the state a node was last announced as. Only the
// watchdog calls this.
func (s *RegistryService) SetAlertedStatus(ctx context.Context, nodeID string, status model.Status) error {
	_, err := s.db.Exec(ctx,
		`UPDATE nodes SET alerted_status = $1, updated_at = now() WHERE node_id = $2`,
		string(status), nodeID)
	if err != nil {
		return fmt.Errorf("set alerted_status for %s: %w", nodeID, err)
	}
	return nil
}

// SaveMetrics persists a node's metrics snapshot and stamps
// metrics_updated_at. A nil snapshot clears the stored blob; that still
// counts as a successful metrics write.
func (s *RegistryService) SaveMetrics(ctx context.Context, nodeID string, snap *model.MetricsSnapshot) error {
	var raw []byte
	if snap != nil {
		var err error
		raw, err = json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode metrics snapshot for %s: %w", nodeID, err)
		}
	}
	_, err := s.db.Exec(ctx,
		`UPDATE nodes SET metrics_snapshot = $1, metrics_updated_at = now(), updated_at = now()
		 WHERE node_id = $2`, raw, nodeID)
	if err != nil {
		return fmt.Errorf("save metrics for %s: %w", nodeID, err)
	}
	return nil
}

// scanNode reads one nodes row through the given scan function.
func scanNode(scan func(dest ...any) error) (*model.NodeRecord, error) {
	var (
		rec              model.NodeRecord
		reported         string
		alerted          string
		rawSnapshot      []byte
		metricsUpdatedAt *time.Time
	)
	err := scan(&rec.NodeID, &rec.IP, &rec.Meta, &rec.LastSeen, &reported, &alerted,
		&rec.PeerIDs, &rec.ExternalAccount, &rec.OffchainIdentity, &rec.AlertEnabled,
		&rawSnapshot, &metricsUpdatedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.ReportedStatus = model.Status(reported)
	rec.AlertedStatus = model.Status(alerted)
	rec.MetricsUpdatedAt = metricsUpdatedAt
	if len(rawSnapshot) > 0 {
		var snap model.MetricsSnapshot
		if err := json.Unmarshal(rawSnapshot, &snap); err != nil {
			return nil, fmt.Errorf("decode metrics snapshot: %w", err)
		}
		rec.Metrics = &snap
	}
	return &rec, nil
}
