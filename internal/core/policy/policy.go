// Package policy holds the rules the fallback engine consults: which
// configuration fields are sources, how sources are ordered, which render
// as text, which color an initials avatar gets, and which sources already
// failed.
package policy

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/core/source"
	"github.com/vietddude/avatar/internal/infra/storage"
)

// Config controls ordering and colors.
type Config struct {
	// Order lists source types by priority. Types left out keep their
	// default relative order after the listed ones.
	Order []domain.SourceType `yaml:"order"`

	// Colors replaces the default palette when non-empty.
	Colors []string `yaml:"colors"`

	// ColorStrategy picks the palette index: "sum" (default) or "xxh3".
	ColorStrategy string `yaml:"color_strategy"`

	// FailureTTL bounds how long a failure is remembered. Zero keeps it
	// for the lifetime of the registry.
	FailureTTL time.Duration `yaml:"failure_ttl"`
}

// Service implements the source policy. Only the failure registry carries
// state; everything else is a pure function of the arguments.
type Service struct {
	order    []domain.SourceType
	priority map[domain.SourceType]int
	colors   []string
	colorFn  func(key string, n int) int
	ttl      time.Duration
	registry storage.FailedSourceRepository
	log      *slog.Logger
	now      func() time.Time
}

// NewService builds a policy service over the given registry.
func NewService(cfg Config, registry storage.FailedSourceRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	order := mergeOrder(cfg.Order)
	priority := make(map[domain.SourceType]int, len(order))
	for i, t := range order {
		priority[t] = i
	}

	colors := DefaultColors
	if len(cfg.Colors) > 0 {
		colors = slices.Clone(cfg.Colors)
	}

	return &Service{
		order:    order,
		priority: priority,
		colors:   colors,
		colorFn:  colorStrategy(cfg.ColorStrategy),
		ttl:      cfg.FailureTTL,
		registry: registry,
		log:      log.With("component", "policy"),
		now:      time.Now,
	}
}

// mergeOrder puts the configured types first and appends the remaining
// defaults, dropping unknown and duplicate entries.
func mergeOrder(configured []domain.SourceType) []domain.SourceType {
	seen := make(map[domain.SourceType]bool, len(domain.DefaultSourceOrder))
	out := make([]domain.SourceType, 0, len(domain.DefaultSourceOrder))
	for _, t := range append(slices.Clone(configured), domain.DefaultSourceOrder...) {
		if !t.Valid() || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Order returns the effective priority order.
func (s *Service) Order() []domain.SourceType {
	return slices.Clone(s.order)
}

// IsSource reports whether a configuration field names an avatar source.
func (s *Service) IsSource(field string) bool {
	_, ok := domain.FieldToSource[field]
	return ok
}

// SourceForField returns the source type behind a configuration field.
func (s *Service) SourceForField(field string) (domain.SourceType, bool) {
	t, ok := domain.FieldToSource[field]
	return t, ok
}

// IsTextAvatar reports whether a source renders as text.
func (s *Service) IsTextAvatar(t domain.SourceType) bool {
	return t == domain.SourceInitials || t == domain.SourceValue
}

// CompareSources orders two source types by priority. Use it with a
// stable sort so equal priorities keep insertion order.
func (s *Service) CompareSources(a, b domain.SourceType) int {
	return s.sourcePriority(a) - s.sourcePriority(b)
}

func (s *Service) sourcePriority(t domain.SourceType) int {
	if p, ok := s.priority[t]; ok {
		return p
	}
	return len(s.priority)
}

// MarkSourceAsFailed adds src to the failure registry. Registry errors are
// logged and dropped; the walk continues either way.
func (s *Service) MarkSourceAsFailed(ctx context.Context, src *source.Source, reason domain.FailureReason) {
	now := s.now()
	fs := &domain.FailedSource{
		Key:        src.Key(),
		SourceType: src.Type(),
		SourceID:   src.ID(),
		Reason:     reason,
		FailedAt:   now,
	}
	if s.ttl > 0 {
		exp := now.Add(s.ttl)
		fs.ExpiresAt = &exp
	}

	if err := s.registry.Add(ctx, fs); err != nil {
		s.log.Warn("Failed to record failed source", "key", fs.Key, "error", err)
	}
}

// SourceHasFailedBefore reports whether src is in the failure registry.
// A registry error reads as "not failed" so the candidate still gets a try.
func (s *Service) SourceHasFailedBefore(ctx context.Context, src *source.Source) bool {
	ok, err := s.registry.Has(ctx, src.Key())
	if err != nil {
		s.log.Warn("Failed to query failure registry", "key", src.Key(), "error", err)
		return false
	}
	return ok
}

// Registry exposes the backing repository for administration.
func (s *Service) Registry() storage.FailedSourceRepository {
	return s.registry
}
