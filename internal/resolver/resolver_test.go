package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/avatar/internal/core/display"
	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/core/engine"
	"github.com/vietddude/avatar/internal/infra/storage/memory"
)

type mockFetcher struct {
	responses map[string]string
}

func (f *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if body, ok := f.responses[url]; ok {
		return []byte(body), nil
	}
	return nil, fmt.Errorf("mocked error for %s", url)
}

// brokenImages fails every URL in its set.
type brokenImages map[string]bool

func (b brokenImages) Verify(ctx context.Context, url string) error {
	if b[url] {
		return errors.New("broken image")
	}
	return nil
}

func newTestResolver(scope string, surface Surface) *Resolver {
	fetcher := &mockFetcher{responses: map[string]string{
		"https://api.github.com/users/github-username": `{"avatar_url":"https://mocked.url/foo.jpg"}`,
	}}
	return New(Config{Scope: scope}, memory.NewFailedSourceRepo(), fetcher, surface, nil)
}

func resolveCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestResolve_WalksPastBrokenImages(t *testing.T) {
	surface := brokenImages{
		"https://profiles.google.com/s2/photos/profile/invalid?sz=50": true,
	}
	r := newTestResolver(ScopeProcess, surface)

	v, err := r.ResolveFields(resolveCtx(t), map[string]string{
		"googleId": "invalid",
		"githubId": "github-username",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if v.Src != "https://mocked.url/foo.jpg&s=50" {
		t.Errorf("src = %q", v.Src)
	}
	if v.Source == nil || v.Source.Type != domain.SourceGitHub {
		t.Errorf("source = %+v", v.Source)
	}
}

func TestResolve_ExhaustsWhenEverythingFails(t *testing.T) {
	surface := brokenImages{
		"https://graph.facebook.com/zuck/picture?width=50&height=50": true,
	}
	r := newTestResolver(ScopeProcess, surface)

	v, err := r.ResolveFields(resolveCtx(t), map[string]string{
		"facebookId": "zuck",
		"githubId":   "nobody",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if v.State != domain.StateExhausted || v.Src != "" || v.Text != "" {
		t.Errorf("view = %+v, want exhausted", v)
	}
}

func TestResolve_ProcessScopeRemembersFailures(t *testing.T) {
	surface := brokenImages{
		"https://profiles.google.com/s2/photos/profile/invalid?sz=50": true,
	}
	r := newTestResolver(ScopeProcess, surface)
	fields := map[string]string{"googleId": "invalid", "name": "Marco"}

	if _, err := r.ResolveFields(resolveCtx(t), fields); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	n, _ := r.Registry().Count(context.Background())
	if n != 1 {
		t.Fatalf("registry holds %d entries, want 1", n)
	}

	// Second request skips google without probing it again.
	delete(surface, "https://profiles.google.com/s2/photos/profile/invalid?sz=50")
	v, err := r.ResolveFields(resolveCtx(t), fields)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if v.Text != "M" {
		t.Errorf("text = %q, want M", v.Text)
	}
}

func TestResolve_SessionScopeIsolatesFailures(t *testing.T) {
	broken := "https://profiles.google.com/s2/photos/profile/invalid?sz=50"
	surface := brokenImages{broken: true}
	r := newTestResolver(ScopeSession, surface)
	fields := map[string]string{"googleId": "invalid", "name": "Marco"}

	if _, err := r.ResolveFields(resolveCtx(t), fields); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if n, _ := r.Registry().Count(context.Background()); n != 0 {
		t.Errorf("shared registry holds %d entries, want 0", n)
	}

	delete(surface, broken)
	v, _ := r.ResolveFields(resolveCtx(t), fields)
	if v.Src != broken {
		t.Errorf("src = %q, want google to be tried again", v.Src)
	}
}

func TestResolve_InvalidField(t *testing.T) {
	r := newTestResolver(ScopeProcess, nil)
	_, err := r.ResolveFields(resolveCtx(t), map[string]string{"nickname": "x"})
	if !errors.Is(err, ErrInvalidRequest) || !errors.Is(err, engine.ErrUnknownField) {
		t.Errorf("err = %v", err)
	}
}

func TestResolve_NoSourcesIsIdle(t *testing.T) {
	r := newTestResolver(ScopeProcess, nil)
	v, err := r.ResolveFields(resolveCtx(t), nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if v.State != domain.StateIdle {
		t.Errorf("state = %s, want idle", v.State)
	}
}

func TestResolve_PartialDisplayOptions(t *testing.T) {
	cfg := Config{Display: display.Options{Size: 40}}
	r := New(cfg, memory.NewFailedSourceRepo(), &mockFetcher{}, nil, nil)

	v, err := r.ResolveFields(resolveCtx(t), map[string]string{"name": "Marco"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if v.Text != "M" || v.HostStyle["width"] != "40px" {
		t.Errorf("view = %+v", v)
	}
}

func TestChangesFromMap_Ordered(t *testing.T) {
	fields := map[string]string{
		"size":       "20",
		"name":       "a",
		"round":      "false",
		"githubId":   "c",
		"facebookId": "b",
	}
	want := []string{"facebookId", "githubId", "name", "round", "size"}

	for range 20 {
		changes := ChangesFromMap(fields)
		if len(changes) != len(want) {
			t.Fatalf("got %d changes, want %d", len(changes), len(want))
		}
		for i, c := range changes {
			if c.Field != want[i] {
				t.Fatalf("changes[%d] = %s, want %s", i, c.Field, want[i])
			}
		}
	}
}
