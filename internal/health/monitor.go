package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/avatar/internal/infra/storage"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	fn       CheckFunc
	critical bool
}

// Monitor aggregates health status from the registry and its backends.
type Monitor struct {
	registry   storage.FailedSourceRepository
	checks     []check
	cacheFor   time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(registry storage.FailedSourceRepository) *Monitor {
	return &Monitor{
		registry: registry,
		cacheFor: 10 * time.Second,
	}
}

// AddCheck registers a dependency. A failing critical check makes the
// whole system critical; any other failure degrades it.
func (m *Monitor) AddCheck(name string, critical bool, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, check{name: name, fn: fn, critical: critical})
	m.lastReport = nil
}

// CheckHealth runs every check. Results are cached briefly so frequent
// probes do not hammer the backends.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheFor {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.checks)),
	}

	for _, c := range m.checks {
		ch := ComponentHealth{Name: c.name, Status: StatusHealthy}
		if err := c.fn(ctx); err != nil {
			ch.Error = err.Error()
			ch.Status = StatusDegraded
			if c.critical {
				ch.Status = StatusCritical
			}
		}
		report.Components[c.name] = ch
		report.SystemStatus = worst(report.SystemStatus, ch.Status)
	}

	if m.registry != nil {
		count, err := m.registry.Count(ctx)
		if err != nil {
			report.SystemStatus = worst(report.SystemStatus, StatusDegraded)
		} else {
			report.FailedSources = count
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
