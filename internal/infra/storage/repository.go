package storage

import (
	"context"

	"github.com/vietddude/avatar/internal/core/domain"
)

// FailedSourceRepository stores the failure registry. Implementations must
// be safe for concurrent use; Add is idempotent per key.
type FailedSourceRepository interface {
	// Add records a failed source. Adding an existing key is a no-op.
	Add(ctx context.Context, fs *domain.FailedSource) error

	// Has reports whether key is recorded and not expired.
	Has(ctx context.Context, key string) (bool, error)

	// GetAll returns every live record ordered by failure time.
	GetAll(ctx context.Context) ([]*domain.FailedSource, error)

	// Remove deletes one record.
	Remove(ctx context.Context, key string) error

	// Clear deletes every record.
	Clear(ctx context.Context) error

	// Count returns the number of live records.
	Count(ctx context.Context) (int, error)
}

// ExpiredPurger is implemented by registries that can drop expired records
// in bulk.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
