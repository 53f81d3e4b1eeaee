package policy

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/core/source"
	"github.com/vietddude/avatar/internal/infra/storage/memory"
)

func newSource(t *testing.T, typ domain.SourceType, id string) *source.Source {
	t.Helper()
	s, err := source.NewFactory().NewInstance(typ, id)
	if err != nil {
		t.Fatalf("NewInstance failed: %v", err)
	}
	return s
}

func TestIsSource(t *testing.T) {
	svc := NewService(Config{}, memory.NewFailedSourceRepo(), nil)

	for _, f := range domain.SourceFields {
		if !svc.IsSource(f) {
			t.Errorf("IsSource(%q) = false", f)
		}
	}
	for _, f := range []string{"size", "round", "bgColor", "placeholder", "facebook"} {
		if svc.IsSource(f) {
			t.Errorf("IsSource(%q) = true", f)
		}
	}
}

func TestIsTextAvatar(t *testing.T) {
	svc := NewService(Config{}, memory.NewFailedSourceRepo(), nil)
	for _, typ := range domain.DefaultSourceOrder {
		want := typ == domain.SourceInitials || typ == domain.SourceValue
		if got := svc.IsTextAvatar(typ); got != want {
			t.Errorf("IsTextAvatar(%s) = %v, want %v", typ, got, want)
		}
	}
}

func TestCompareSources_DefaultOrder(t *testing.T) {
	svc := NewService(Config{}, memory.NewFailedSourceRepo(), nil)

	types := []domain.SourceType{
		domain.SourceValue, domain.SourceInitials, domain.SourceGitHub, domain.SourceFacebook,
	}
	slices.SortStableFunc(types, svc.CompareSources)

	want := []domain.SourceType{
		domain.SourceFacebook, domain.SourceGitHub, domain.SourceInitials, domain.SourceValue,
	}
	if !slices.Equal(types, want) {
		t.Errorf("sorted = %v, want %v", types, want)
	}
}

func TestCompareSources_ConfiguredOrder(t *testing.T) {
	svc := NewService(Config{
		Order: []domain.SourceType{domain.SourceInitials, "bogus", domain.SourceGitHub, domain.SourceInitials},
	}, memory.NewFailedSourceRepo(), nil)

	order := svc.Order()
	if order[0] != domain.SourceInitials || order[1] != domain.SourceGitHub {
		t.Fatalf("configured types should lead, got %v", order)
	}
	if len(order) != len(domain.DefaultSourceOrder) {
		t.Fatalf("order has %d entries, want %d", len(order), len(domain.DefaultSourceOrder))
	}
	if svc.CompareSources(domain.SourceInitials, domain.SourceFacebook) >= 0 {
		t.Error("initials should sort before facebook")
	}
	if svc.CompareSources(domain.SourceFacebook, domain.SourceFacebook) != 0 {
		t.Error("equal types should compare equal")
	}
}

func TestRandomColor(t *testing.T) {
	svc := NewService(Config{}, memory.NewFailedSourceRepo(), nil)

	if got := svc.RandomColor(""); got != "transparent" {
		t.Errorf("RandomColor(\"\") = %q", got)
	}
	if got := svc.RandomColor("Marco"); got != "#f1c40f" {
		t.Errorf("RandomColor(Marco) = %q, want #f1c40f", got)
	}
	if svc.RandomColor("Marco") != svc.RandomColor("Marco") {
		t.Error("RandomColor is not deterministic")
	}

	custom := NewService(Config{Colors: []string{"red"}}, memory.NewFailedSourceRepo(), nil)
	if got := custom.RandomColor("anything"); got != "red" {
		t.Errorf("custom palette color = %q", got)
	}

	hashed := NewService(Config{ColorStrategy: ColorStrategyXXH3}, memory.NewFailedSourceRepo(), nil)
	first := hashed.RandomColor("Marco")
	if !slices.Contains(DefaultColors, first) || hashed.RandomColor("Marco") != first {
		t.Errorf("xxh3 strategy returned %q", first)
	}
}

func TestFailureRegistry_MarkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFailedSourceRepo()
	svc := NewService(Config{}, repo, nil)
	src := newSource(t, domain.SourceGravatar, "invalid@example.com")

	if svc.SourceHasFailedBefore(ctx, src) {
		t.Fatal("fresh source reported as failed")
	}
	svc.MarkSourceAsFailed(ctx, src, domain.FailureRender)
	svc.MarkSourceAsFailed(ctx, src, domain.FailureRender)

	if !svc.SourceHasFailedBefore(ctx, src) {
		t.Error("marked source not reported as failed")
	}
	if count, _ := repo.Count(ctx); count != 1 {
		t.Errorf("registry holds %d entries, want 1", count)
	}
}

func TestFailureRegistry_SharedByContentKey(t *testing.T) {
	ctx := context.Background()
	svc := NewService(Config{}, memory.NewFailedSourceRepo(), nil)

	a := newSource(t, domain.SourceGoogle, "same-id")
	b := newSource(t, domain.SourceGoogle, "same-id")
	other := newSource(t, domain.SourceFacebook, "same-id")

	svc.MarkSourceAsFailed(ctx, a, domain.FailureRender)

	if !svc.SourceHasFailedBefore(ctx, b) {
		t.Error("distinct instance with the same type and id should be skipped")
	}
	if svc.SourceHasFailedBefore(ctx, other) {
		t.Error("same id under another type must not be skipped")
	}
}

func TestFailureRegistry_TTL(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFailedSourceRepo()
	svc := NewService(Config{FailureTTL: time.Hour}, repo, nil)
	src := newSource(t, domain.SourceFacebook, "zuck")

	svc.MarkSourceAsFailed(ctx, src, domain.FailureFetch)

	all, _ := repo.GetAll(ctx)
	if len(all) != 1 || all[0].ExpiresAt == nil {
		t.Fatalf("expected one record with expiry, got %+v", all)
	}
	if all[0].Reason != domain.FailureFetch {
		t.Errorf("reason = %s", all[0].Reason)
	}
}

type brokenRepo struct {
	*memory.FailedSourceRepo
}

func (brokenRepo) Has(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenRepo) Add(context.Context, *domain.FailedSource) error {
	return errors.New("connection refused")
}

func TestFailureRegistry_BackendErrorsAbsorbed(t *testing.T) {
	ctx := context.Background()
	svc := NewService(Config{}, brokenRepo{memory.NewFailedSourceRepo()}, nil)
	src := newSource(t, domain.SourceFacebook, "zuck")

	svc.MarkSourceAsFailed(ctx, src, domain.FailureRender)
	if svc.SourceHasFailedBefore(ctx, src) {
		t.Error("registry error should read as not failed")
	}
}
