package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/avatar/internal/core/config"
	"github.com/vietddude/avatar/internal/health"
	redisclient "github.com/vietddude/avatar/internal/infra/redis"
	"github.com/vietddude/avatar/internal/infra/storage"
	"github.com/vietddude/avatar/internal/infra/storage/memory"
	"github.com/vietddude/avatar/internal/infra/storage/postgres"
)

// Registry is an opened failure registry backend.
type Registry struct {
	Repo  storage.FailedSourceRepository
	DB    *postgres.DB
	Redis *redisclient.Client
}

// OpenRegistry connects the configured backend. Postgres migrations run
// when migrate is set.
func OpenRegistry(ctx context.Context, cfg *config.AppConfig, migrate bool) (*Registry, error) {
	switch cfg.Registry.Backend {
	case config.BackendRedis:
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		slog.Info("Using Redis failure registry", "prefix", cfg.Redis.Prefix)
		return &Registry{Repo: redisclient.NewFailedSourceRepo(client), Redis: client}, nil

	case config.BackendPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if migrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to migrate db: %w", err)
			}
		}
		slog.Info("Using PostgreSQL failure registry", "driver", cfg.Database.Driver)
		return &Registry{Repo: postgres.NewFailedSourceRepo(db), DB: db}, nil

	default:
		slog.Info("Using in-memory failure registry")
		return &Registry{Repo: memory.NewFailedSourceRepo()}, nil
	}
}

// RegisterChecks adds the backend connectivity checks to a health monitor.
func (r *Registry) RegisterChecks(m *health.Monitor) {
	if r.DB != nil {
		m.AddCheck("postgres", true, r.DB.Health)
	}
	if r.Redis != nil {
		m.AddCheck("redis", true, r.Redis.Ping)
	}
}

// Close releases backend connections.
func (r *Registry) Close() error {
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			return err
		}
	}
	if r.DB != nil {
		return r.DB.Close()
	}
	return nil
}
