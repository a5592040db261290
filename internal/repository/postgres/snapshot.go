package postgres

import (
	"context"
	"time"

	"agentsplatform/internal/domain/snapshot"
	"agentsplatform/pkg/errors"
)

var _ snapshot.Repository = (*SnapshotRepository)(nil)

// SnapshotRepository stores metrics exports in the metrics table
type SnapshotRepository struct {
	db DBTX
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Store inserts a snapshot
func (r *SnapshotRepository) Store(ctx context.Context, s *snapshot.Snapshot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO metrics (id, data, timestamp) VALUES ($1, $2::jsonb, $3)`,
		s.ID, jsonText(s.Data), s.Timestamp)
	return errors.Wrap(err, "store metrics snapshot")
}

// DeleteBefore removes snapshots older than cutoff
func (r *SnapshotRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteBefore(ctx, r.db, "metrics", cutoff)
}
