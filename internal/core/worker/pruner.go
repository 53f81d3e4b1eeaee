package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/avatar/internal/infra/storage"
	"github.com/vietddude/avatar/internal/metrics"
)

// Pruner drops expired failure records and keeps the registry gauge current.
type Pruner struct {
	ttl      time.Duration
	registry storage.FailedSourceRepository
	log      *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(ttl time.Duration, registry storage.FailedSourceRepository, log *slog.Logger) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		ttl:      ttl,
		registry: registry,
		log:      log.With("component", "pruner"),
	}
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	// 10% of the ttl, clamped to [1m, 1h]; without a ttl only the gauge is refreshed
	interval := time.Minute
	if p.ttl > 0 {
		interval = min(p.ttl/10, 1*time.Hour)
		interval = max(interval, 1*time.Minute)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs one pass.
func (p *Pruner) Prune(ctx context.Context) {
	if purger, ok := p.registry.(storage.ExpiredPurger); ok && p.ttl > 0 {
		n, err := purger.PurgeExpired(ctx)
		if err != nil {
			p.log.Error("Failed to purge expired sources", "error", err)
		} else if n > 0 {
			p.log.Debug("Purged expired sources", "count", n)
		}
	}

	count, err := p.registry.Count(ctx)
	if err != nil {
		p.log.Error("Failed to count failed sources", "error", err)
		return
	}
	metrics.FailedSources.Set(float64(count))
}
