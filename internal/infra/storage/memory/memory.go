package memory

import (
	"context"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/infra/storage"
)

var _ storage.FailedSourceRepository = (*FailedSourceRepo)(nil)

// FailedSourceRepo keeps the failure registry in a concurrent map.
type FailedSourceRepo struct {
	entries *xsync.Map[string, *domain.FailedSource]
	now     func() time.Time
}

func NewFailedSourceRepo() *FailedSourceRepo {
	return &FailedSourceRepo{
		entries: xsync.NewMap[string, *domain.FailedSource](),
		now:     time.Now,
	}
}

func (r *FailedSourceRepo) Add(ctx context.Context, fs *domain.FailedSource) error {
	c := *fs
	now := r.now()
	r.entries.Compute(fs.Key, func(old *domain.FailedSource, loaded bool) (*domain.FailedSource, xsync.ComputeOp) {
		if loaded && !old.Expired(now) {
			return old, xsync.CancelOp
		}
		return &c, xsync.UpdateOp
	})
	return nil
}

// loadLive returns the record for key, deleting it in the same step when it
// has expired.
func (r *FailedSourceRepo) loadLive(key string, now time.Time) (*domain.FailedSource, bool) {
	return r.entries.Compute(key, func(old *domain.FailedSource, loaded bool) (*domain.FailedSource, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		if old.Expired(now) {
			return old, xsync.DeleteOp
		}
		return old, xsync.CancelOp
	})
}

func (r *FailedSourceRepo) Has(ctx context.Context, key string) (bool, error) {
	_, ok := r.loadLive(key, r.now())
	return ok, nil
}

func (r *FailedSourceRepo) GetAll(ctx context.Context) ([]*domain.FailedSource, error) {
	now := r.now()
	out := make([]*domain.FailedSource, 0, r.entries.Size())
	r.entries.Range(func(key string, _ *domain.FailedSource) bool {
		fs, ok := r.loadLive(key, now)
		if !ok {
			return true
		}
		c := *fs
		out = append(out, &c)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].FailedAt.Equal(out[j].FailedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].FailedAt.Before(out[j].FailedAt)
	})
	return out, nil
}

func (r *FailedSourceRepo) Remove(ctx context.Context, key string) error {
	r.entries.Delete(key)
	return nil
}

func (r *FailedSourceRepo) Clear(ctx context.Context) error {
	r.entries.Clear()
	return nil
}

func (r *FailedSourceRepo) Count(ctx context.Context) (int, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (r *FailedSourceRepo) PurgeExpired(ctx context.Context) (int64, error) {
	now := r.now()
	var n int64
	r.entries.Range(func(key string, fs *domain.FailedSource) bool {
		if !fs.Expired(now) {
			return true
		}
		if _, ok := r.loadLive(key, now); !ok {
			n++
		}
		return true
	})
	return n, nil
}
