package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/infra/storage"
)

var _ storage.FailedSourceRepository = (*FailedSourceRepo)(nil)

// FailedSourceRepo implements FailedSourceRepository using Redis. Each
// record lives under its own key (expiring with the record) and a sorted
// set indexes the keys by failure time.
type FailedSourceRepo struct {
	client *Client
	rdb    *redis.Client
	now    func() time.Time
}

// addFailedSource stores the entry and indexes it in one step. An existing
// entry is left alone; its index member is restored if missing.
var addFailedSource = redis.NewScript(`
local ok
if tonumber(ARGV[2]) > 0 then
	ok = redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2], 'NX')
else
	ok = redis.call('SET', KEYS[1], ARGV[1], 'NX')
end
if ok then
	redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
	return 1
end
redis.call('ZADD', KEYS[2], 'NX', ARGV[3], ARGV[4])
return 0
`)

// NewFailedSourceRepo creates a new Redis-backed failure registry.
func NewFailedSourceRepo(client *Client) *FailedSourceRepo {
	return &FailedSourceRepo{
		client: client,
		rdb:    client.rdb,
		now:    time.Now,
	}
}

// Add stores the record unless the key is already present.
func (r *FailedSourceRepo) Add(ctx context.Context, fs *domain.FailedSource) error {
	var ttl time.Duration
	if fs.ExpiresAt != nil {
		ttl = fs.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return nil
		}
	}

	data, err := json.Marshal(fs)
	if err != nil {
		return fmt.Errorf("failed to marshal failed source: %w", err)
	}

	err = addFailedSource.Run(ctx, r.rdb,
		[]string{r.client.entryKey(fs.Key), r.client.indexKey()},
		data, ttlMillis(ttl), fs.FailedAt.UnixMilli(), fs.Key,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to add failed source: %w", err)
	}
	return nil
}

// ttlMillis rounds a positive ttl up to whole milliseconds; 0 means no expiry.
func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64((ttl + time.Millisecond - 1) / time.Millisecond)
}

// Has reports whether the key is recorded. Expiry is enforced by Redis.
func (r *FailedSourceRepo) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.client.entryKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("exists failed: %w", err)
	}
	return n > 0, nil
}

// GetAll returns live records in failure order and prunes index members
// whose record has expired.
func (r *FailedSourceRepo) GetAll(ctx context.Context) ([]*domain.FailedSource, error) {
	keys, err := r.rdb.ZRange(ctx, r.client.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	if len(keys) == 0 {
		return []*domain.FailedSource{}, nil
	}

	entryKeys := make([]string, len(keys))
	for i, k := range keys {
		entryKeys[i] = r.client.entryKey(k)
	}
	values, err := r.rdb.MGet(ctx, entryKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget failed: %w", err)
	}

	out := make([]*domain.FailedSource, 0, len(keys))
	var stale []any
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Data expired but key still in index
			stale = append(stale, keys[i])
			continue
		}
		var fs domain.FailedSource
		if err := json.Unmarshal([]byte(s), &fs); err != nil {
			continue
		}
		out = append(out, &fs)
	}

	if len(stale) > 0 {
		r.rdb.ZRem(ctx, r.client.indexKey(), stale...)
	}
	return out, nil
}

// Remove deletes one record.
func (r *FailedSourceRepo) Remove(ctx context.Context, key string) error {
	if err := r.rdb.ZRem(ctx, r.client.indexKey(), key).Err(); err != nil {
		return fmt.Errorf("failed to remove from index: %w", err)
	}
	if err := r.rdb.Del(ctx, r.client.entryKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete failed source: %w", err)
	}
	return nil
}

// Clear deletes every record.
func (r *FailedSourceRepo) Clear(ctx context.Context) error {
	keys, err := r.rdb.ZRange(ctx, r.client.indexKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("zrange failed: %w", err)
	}

	del := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		del = append(del, r.client.entryKey(k))
	}
	del = append(del, r.client.indexKey())

	if err := r.rdb.Del(ctx, del...).Err(); err != nil {
		return fmt.Errorf("failed to clear failed sources: %w", err)
	}
	return nil
}

// Count returns the number of live records.
func (r *FailedSourceRepo) Count(ctx context.Context) (int, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// PurgeExpired drops index members whose record Redis already expired.
func (r *FailedSourceRepo) PurgeExpired(ctx context.Context) (int64, error) {
	before, err := r.rdb.ZCard(ctx, r.client.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	live, err := r.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	return before - int64(len(live)), nil
}
