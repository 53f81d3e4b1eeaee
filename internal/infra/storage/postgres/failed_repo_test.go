package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/vietddude/avatar/internal/core/domain"
)

func newTestRepo(t *testing.T) *FailedSourceRepo {
	t.Helper()
	url := os.Getenv("AVATAR_DATABASE_URL")
	if url == "" {
		t.Skip("AVATAR_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, Config{URL: url, Driver: os.Getenv("AVATAR_DATABASE_DRIVER")})
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	repo := NewFailedSourceRepo(db)
	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Clear(context.Background())
		db.Close()
	})
	return repo
}

func failed(t domain.SourceType, id string, at time.Time) *domain.FailedSource {
	return &domain.FailedSource{
		Key:        domain.SourceKey(t, id),
		SourceType: t,
		SourceID:   id,
		Reason:     domain.FailureRender,
		FailedAt:   at.UTC().Truncate(time.Millisecond),
	}
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	if _, err := NewDB(context.Background(), Config{URL: "postgres://x", Driver: "mysql"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestFailedSourceRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now()

	if err := repo.Add(ctx, failed(domain.SourceGitHub, "b", now.Add(time.Second))); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := repo.Add(ctx, failed(domain.SourceFacebook, "a", now)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	dup := failed(domain.SourceFacebook, "a", now.Add(time.Hour))
	dup.Reason = domain.FailureFetch
	if err := repo.Add(ctx, dup); err != nil {
		t.Fatalf("duplicate Add failed: %v", err)
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].Key != "facebook:a" || all[0].Reason != domain.FailureRender {
		t.Fatalf("unexpected records: %+v", all)
	}

	if ok, _ := repo.Has(ctx, "github:b"); !ok {
		t.Error("github:b should be present")
	}
	if err := repo.Remove(ctx, "github:b"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestFailedSourceRepo_ExpiredIsReplaced(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now()

	past := now.Add(-time.Minute)
	old := failed(domain.SourceGoogle, "x", now.Add(-time.Hour))
	old.ExpiresAt = &past
	_ = repo.Add(ctx, old)

	if ok, _ := repo.Has(ctx, old.Key); ok {
		t.Fatal("expired record should not count")
	}

	fresh := failed(domain.SourceGoogle, "x", now)
	fresh.Reason = domain.FailureFetch
	_ = repo.Add(ctx, fresh)

	all, _ := repo.GetAll(ctx)
	if len(all) != 1 || all[0].Reason != domain.FailureFetch {
		t.Errorf("expired record was not replaced: %+v", all)
	}

	if n, _ := repo.PurgeExpired(ctx); n != 0 {
		t.Errorf("purged %d live records", n)
	}
}
