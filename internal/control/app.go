package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/avatar/internal/core/config"
	"github.com/vietddude/avatar/internal/core/display"
	"github.com/vietddude/avatar/internal/core/policy"
	"github.com/vietddude/avatar/internal/core/worker"
	"github.com/vietddude/avatar/internal/health"
	"github.com/vietddude/avatar/internal/infra/fetch"
	"github.com/vietddude/avatar/internal/infra/surface"
	"github.com/vietddude/avatar/internal/resolver"
	"github.com/vietddude/avatar/internal/server/grpcapi"
	"github.com/vietddude/avatar/internal/server/httpapi"
)

// App is the main application struct that manages the server lifecycle.
type App struct {
	cfg        *config.AppConfig
	registry   *Registry
	resolver   *resolver.Resolver
	healthMon  *health.Monitor
	httpServer *httpapi.Server
	grpcServer *grpcapi.Server
	pruner     *worker.Pruner
	log        *slog.Logger
}

// NewResolver builds the resolver for cfg over an opened registry.
func NewResolver(cfg *config.AppConfig, repo *Registry, log *slog.Logger) *resolver.Resolver {
	opts := display.DefaultOptions()
	opts.Size = cfg.Avatar.DefaultSize

	var surf resolver.Surface
	if cfg.Probe.Enabled {
		surf = surface.NewProber(cfg.Probe, log)
	}

	return resolver.New(
		resolver.Config{
			Policy: policy.Config{
				Order:         cfg.Avatar.Order,
				Colors:        cfg.Avatar.Colors,
				ColorStrategy: cfg.Avatar.ColorStrategy,
				FailureTTL:    cfg.Registry.TTL,
			},
			Scope:   cfg.Registry.Scope,
			Display: opts,
		},
		repo.Repo,
		fetch.NewHTTPFetcher(cfg.Fetch, log),
		surf,
		log,
	)
}

// NewApp creates a new App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	// 1. Failure registry
	reg, err := OpenRegistry(ctx, cfg, true)
	if err != nil {
		return nil, err
	}

	// 2. Resolver
	res := NewResolver(cfg, reg, log)

	// 3. Health
	healthMon := health.NewMonitor(reg.Repo)
	reg.RegisterChecks(healthMon)

	app := &App{
		cfg:        cfg,
		registry:   reg,
		resolver:   res,
		healthMon:  healthMon,
		httpServer: httpapi.NewServer(res, healthMon, cfg.Server.Port, log),
		pruner:     worker.NewPruner(cfg.Registry.TTL, reg.Repo, log),
		log:        log,
	}

	// 4. gRPC
	if cfg.Server.GRPCPort > 0 {
		app.grpcServer = grpcapi.NewServer(res, cfg.Server.GRPCPort, log)
	}

	return app, nil
}

// Resolver returns the application's resolver.
func (a *App) Resolver() *resolver.Resolver {
	return a.resolver
}

// Start starts the servers and background workers. It does not block.
func (a *App) Start(ctx context.Context) error {
	go func() {
		a.log.Info("Starting HTTP server", "port", a.cfg.Server.Port)
		if err := a.httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	if a.grpcServer != nil {
		go func() {
			a.log.Info("Starting gRPC server", "port", a.cfg.Server.GRPCPort)
			if err := a.grpcServer.Start(); err != nil {
				a.log.Error("gRPC server failed", "error", err)
			}
		}()
	}

	// Start DB Metrics Collector
	if a.registry.DB != nil {
		a.registry.DB.StartMetricsCollector(ctx)
	}

	// Start Pruner (also refreshes the registry gauge)
	go a.pruner.Start(ctx)

	return nil
}

// Stop stops the servers and closes backend connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping avatar service...")

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if a.grpcServer != nil {
		a.grpcServer.Stop()
	}
	if err := a.registry.Close(); err != nil {
		errs = append(errs, fmt.Errorf("registry: %w", err))
	}
	return errors.Join(errs...)
}
