package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/infra/storage"
)

var _ storage.FailedSourceRepository = (*FailedSourceRepo)(nil)

// FailedSourceRepo implements storage.FailedSourceRepository using PostgreSQL.
type FailedSourceRepo struct {
	db  *DB
	now func() time.Time
}

// NewFailedSourceRepo creates a new PostgreSQL failure registry.
func NewFailedSourceRepo(db *DB) *FailedSourceRepo {
	return &FailedSourceRepo{db: db, now: time.Now}
}

// Add records a failed source. An existing live record wins; an expired one
// is replaced.
func (r *FailedSourceRepo) Add(ctx context.Context, fs *domain.FailedSource) error {
	query := `
		INSERT INTO failed_sources (key, source_type, source_id, reason, failed_at, expires_at)
		VALUES (:key, :source_type, :source_id, :reason, :failed_at, :expires_at)
		ON CONFLICT (key) DO UPDATE
		SET source_type = EXCLUDED.source_type,
		    source_id   = EXCLUDED.source_id,
		    reason      = EXCLUDED.reason,
		    failed_at   = EXCLUDED.failed_at,
		    expires_at  = EXCLUDED.expires_at
		WHERE failed_sources.expires_at IS NOT NULL AND failed_sources.expires_at <= NOW()
	`
	if _, err := r.db.NamedExecContext(ctx, query, fs); err != nil {
		return fmt.Errorf("failed to add failed source: %w", err)
	}
	return nil
}

// Has reports whether a live record exists for key.
func (r *FailedSourceRepo) Has(ctx context.Context, key string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM failed_sources
			WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, key, r.now()); err != nil {
		return false, fmt.Errorf("failed to check failed source: %w", err)
	}
	return exists, nil
}

// GetAll returns live records ordered by failure time.
func (r *FailedSourceRepo) GetAll(ctx context.Context) ([]*domain.FailedSource, error) {
	query := `
		SELECT key, source_type, source_id, reason, failed_at, expires_at
		FROM failed_sources
		WHERE expires_at IS NULL OR expires_at > $1
		ORDER BY failed_at ASC, key ASC
	`
	out := []*domain.FailedSource{}
	if err := r.db.SelectContext(ctx, &out, query, r.now()); err != nil {
		return nil, fmt.Errorf("failed to list failed sources: %w", err)
	}
	return out, nil
}

// Remove deletes one record.
func (r *FailedSourceRepo) Remove(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM failed_sources WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to remove failed source: %w", err)
	}
	return nil
}

// Clear deletes every record.
func (r *FailedSourceRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM failed_sources`); err != nil {
		return fmt.Errorf("failed to clear failed sources: %w", err)
	}
	return nil
}

// Count returns the number of live records.
func (r *FailedSourceRepo) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM failed_sources WHERE expires_at IS NULL OR expires_at > $1`
	var n int
	if err := r.db.GetContext(ctx, &n, query, r.now()); err != nil {
		return 0, fmt.Errorf("failed to count failed sources: %w", err)
	}
	return n, nil
}

// PurgeExpired deletes expired records and returns how many were removed.
func (r *FailedSourceRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM failed_sources WHERE expires_at IS NOT NULL AND expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge failed sources: %w", err)
	}
	return res.RowsAffected()
}
