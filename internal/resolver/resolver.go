// Package resolver runs one avatar resolution session per request.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/vietddude/avatar/internal/core/display"
	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/core/engine"
	"github.com/vietddude/avatar/internal/core/policy"
	"github.com/vietddude/avatar/internal/core/source"
	"github.com/vietddude/avatar/internal/infra/storage"
	"github.com/vietddude/avatar/internal/infra/storage/memory"
)

// ErrInvalidRequest wraps configuration errors reported by the engine.
var ErrInvalidRequest = errors.New("invalid avatar request")

const (
	ScopeProcess = "process"
	ScopeSession = "session"
)

// Surface verifies that a URL renders.
type Surface interface {
	Verify(ctx context.Context, url string) error
}

// Config holds resolver settings.
type Config struct {
	Policy  policy.Config
	Scope   string // process (default) or session
	Display display.Options
}

// Resolver builds sessions that share a factory, fetcher and, in process
// scope, one failure registry.
type Resolver struct {
	cfg      Config
	policy   *policy.Service
	registry storage.FailedSourceRepository
	factory  *source.Factory
	fetcher  engine.Fetcher
	surface  Surface
	log      *slog.Logger
}

// New creates a resolver. surface may be nil, in which case every URL is
// taken as rendered.
func New(
	cfg Config,
	registry storage.FailedSourceRepository,
	fetcher engine.Fetcher,
	surface Surface,
	log *slog.Logger,
) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Scope == "" {
		cfg.Scope = ScopeProcess
	}
	if cfg.Display.Size == 0 && cfg.Display.TextSizeRatio == 0 {
		cfg.Display = display.DefaultOptions()
	}
	cfg.Display = cfg.Display.Normalize()
	return &Resolver{
		cfg:      cfg,
		policy:   policy.NewService(cfg.Policy, registry, log),
		registry: registry,
		factory:  source.NewFactory(),
		fetcher:  fetcher,
		surface:  surface,
		log:      log.With("component", "resolver"),
	}
}

// Policy returns the shared policy service.
func (r *Resolver) Policy() *policy.Service {
	return r.policy
}

// Registry returns the shared failure registry.
func (r *Resolver) Registry() storage.FailedSourceRepository {
	return r.registry
}

// NewSession opens an avatar session bound to the configured registry scope.
// The caller must Close it.
func (r *Resolver) NewSession() *engine.Avatar {
	pol := r.policy
	if r.cfg.Scope == ScopeSession {
		pol = policy.NewService(r.cfg.Policy, memory.NewFailedSourceRepo(), r.log)
	}
	return engine.New(pol, r.factory, r.fetcher,
		engine.WithLogger(r.log),
		engine.WithDisplay(r.cfg.Display),
	)
}

// Resolve applies changes to a fresh session and walks it to a settled
// state. Every image URL the engine settles on is checked by the surface;
// a URL that fails to render is reported back and the walk continues.
func (r *Resolver) Resolve(ctx context.Context, changes []engine.Change) (engine.View, error) {
	a := r.NewSession()
	defer a.Close()

	if err := a.Apply(changes...); err != nil {
		return engine.View{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	for {
		v, err := a.Wait(ctx)
		if err != nil {
			return v, err
		}
		if v.State != domain.StateResolved || v.Src == "" || r.surface == nil {
			return v, nil
		}

		err = r.surface.Verify(ctx, v.Src)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return v, ctx.Err()
		}
		r.log.Debug("Avatar did not render", "src", v.Src, "error", err)
		a.RenderFailed(v.Src)
	}
}

// ResolveFields is Resolve over a field map, applied in ChangesFromMap order.
func (r *Resolver) ResolveFields(ctx context.Context, fields map[string]string) (engine.View, error) {
	return r.Resolve(ctx, ChangesFromMap(fields))
}

// ChangesFromMap converts a field map into changes. Source fields come first
// in domain.SourceFields order, the remaining fields follow sorted by name.
func ChangesFromMap(fields map[string]string) []engine.Change {
	changes := make([]engine.Change, 0, len(fields))
	for _, f := range domain.SourceFields {
		if v, ok := fields[f]; ok {
			changes = append(changes, engine.Change{Field: f, Value: v})
		}
	}
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if !slices.Contains(domain.SourceFields, k) {
			changes = append(changes, engine.Change{Field: k, Value: fields[k]})
		}
	}
	return changes
}
