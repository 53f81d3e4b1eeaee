package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/avatar/internal/core/domain"
)

func failed(t domain.SourceType, id string, at time.Time) *domain.FailedSource {
	return &domain.FailedSource{
		Key:        domain.SourceKey(t, id),
		SourceType: t,
		SourceID:   id,
		Reason:     domain.FailureRender,
		FailedAt:   at,
	}
}

func TestFailedSourceRepo_AddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewFailedSourceRepo()
	now := time.Now()

	fs := failed(domain.SourceGravatar, "a@example.com", now)
	if err := repo.Add(ctx, fs); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := repo.Add(ctx, fs); err != nil {
		t.Fatalf("second Add failed: %v", err)
	}

	count, _ := repo.Count(ctx)
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
	ok, _ := repo.Has(ctx, fs.Key)
	if !ok {
		t.Error("Has() = false after Add")
	}
}

func TestFailedSourceRepo_GetAllOrdered(t *testing.T) {
	ctx := context.Background()
	repo := NewFailedSourceRepo()
	base := time.Now()

	_ = repo.Add(ctx, failed(domain.SourceGoogle, "b", base.Add(2*time.Second)))
	_ = repo.Add(ctx, failed(domain.SourceFacebook, "a", base))
	_ = repo.Add(ctx, failed(domain.SourceGitHub, "c", base.Add(time.Second)))

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	want := []string{"facebook:a", "github:c", "google:b"}
	if len(all) != len(want) {
		t.Fatalf("GetAll() returned %d records, want %d", len(all), len(want))
	}
	for i, k := range want {
		if all[i].Key != k {
			t.Errorf("GetAll()[%d] = %s, want %s", i, all[i].Key, k)
		}
	}
}

func TestFailedSourceRepo_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := NewFailedSourceRepo()
	now := time.Now()
	repo.now = func() time.Time { return now }

	fs := failed(domain.SourceFacebook, "zuck", now)
	exp := now.Add(time.Minute)
	fs.ExpiresAt = &exp
	_ = repo.Add(ctx, fs)

	if ok, _ := repo.Has(ctx, fs.Key); !ok {
		t.Fatal("record should be live before expiry")
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := repo.Has(ctx, fs.Key); ok {
		t.Error("record should be gone after expiry")
	}
	if count, _ := repo.Count(ctx); count != 0 {
		t.Errorf("Count() = %d after expiry", count)
	}
}

func TestFailedSourceRepo_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	repo := NewFailedSourceRepo()
	now := time.Now()
	_ = repo.Add(ctx, failed(domain.SourceFacebook, "a", now))
	_ = repo.Add(ctx, failed(domain.SourceGoogle, "b", now))

	_ = repo.Remove(ctx, "facebook:a")
	if ok, _ := repo.Has(ctx, "facebook:a"); ok {
		t.Error("Remove did not delete the record")
	}

	_ = repo.Clear(ctx)
	if count, _ := repo.Count(ctx); count != 0 {
		t.Errorf("Count() = %d after Clear", count)
	}
}

func TestFailedSourceRepo_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	repo := NewFailedSourceRepo()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Add(ctx, failed(domain.SourceGitHub, "same", time.Now()))
		}()
	}
	wg.Wait()

	if count, _ := repo.Count(ctx); count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestFailedSourceRepo_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewFailedSourceRepo()
	now := time.Now()
	repo.now = func() time.Time { return now }

	past := now.Add(-time.Second)
	expired := failed(domain.SourceGoogle, "old", now.Add(-time.Minute))
	expired.ExpiresAt = &past
	_ = repo.Add(ctx, expired)
	_ = repo.Add(ctx, failed(domain.SourceGoogle, "live", now))

	n, err := repo.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if repo.entries.Size() != 1 {
		t.Errorf("map holds %d entries, want 1", repo.entries.Size())
	}
}

func TestFailedSourceRepo_ExpiryKeepsFreshReAdd(t *testing.T) {
	ctx := context.Background()
	repo := NewFailedSourceRepo()
	now := time.Now()
	repo.now = func() time.Time { return now }

	const workers = 8
	for round := range 200 {
		fs := failed(domain.SourceGitHub, "octocat", now.Add(-time.Hour))
		past := now.Add(-time.Second)
		fs.ExpiresAt = &past
		repo.entries.Store(fs.Key, fs)

		fresh := failed(domain.SourceGitHub, "octocat", now)
		future := now.Add(time.Hour)
		fresh.ExpiresAt = &future

		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = repo.Has(ctx, fresh.Key)
				_, _ = repo.GetAll(ctx)
			}()
		}
		_ = repo.Add(ctx, fresh)
		wg.Wait()

		if ok, _ := repo.Has(ctx, fresh.Key); !ok {
			t.Fatalf("round %d: fresh record lost to a concurrent expiry check", round)
		}
	}
}
