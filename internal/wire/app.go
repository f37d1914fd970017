package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	memarchive "github.com/agentprovision/orchestrator/internal/adapter/memory/archive"
	memeventbus "github.com/agentprovision/orchestrator/internal/adapter/memory/eventbus"
	memqueue "github.com/agentprovision/orchestrator/internal/adapter/memory/queue"
	memregistry "github.com/agentprovision/orchestrator/internal/adapter/memory/registry"
	memtaskstore "github.com/agentprovision/orchestrator/internal/adapter/memory/taskstore"
	pgdb "github.com/agentprovision/orchestrator/internal/adapter/postgres"
	pgarchive "github.com/agentprovision/orchestrator/internal/adapter/postgres/archive"
	"github.com/agentprovision/orchestrator/internal/adapter/ws"
	"github.com/agentprovision/orchestrator/internal/config"
	portarchive "github.com/agentprovision/orchestrator/internal/port/archive"

	agentsvc "github.com/agentprovision/orchestrator/internal/service/agent"
	controlsvc "github.com/agentprovision/orchestrator/internal/service/control"
	healthsvc "github.com/agentprovision/orchestrator/internal/service/health"
	metricssvc "github.com/agentprovision/orchestrator/internal/service/metrics"
	schedulersvc "github.com/agentprovision/orchestrator/internal/service/scheduler"
	tasksvc "github.com/agentprovision/orchestrator/internal/service/task"

	"github.com/agentprovision/orchestrator/internal/transport"
)

// App holds the top-level resources needed to run and gracefully stop the server.
type App struct {
	Pool      *pgxpool.Pool
	Server    *http.Server
	HealthSvc *healthsvc.Service
}

// Build is the composition root: the only place concrete types are wired to their
// interface dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	// ── Storage ──────────────────────────────────────────────────────────────
	// The engine state is in-memory. Postgres, when configured, only receives
	// the terminal-task audit trail.
	var pool *pgxpool.Pool
	var archive portarchive.Store = memarchive.New()
	if cfg.Database.URL != "" {
		p, err := pgdb.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		pool = p
		archive = pgarchive.New(pool)
		slog.Info("task archive backed by postgres")
	}

	// ── Adapters ─────────────────────────────────────────────────────────────
	registry := memregistry.New()
	queue := memqueue.New()
	store := memtaskstore.New()
	bus := memeventbus.New()
	hub := ws.NewHub()

	// ── Services ─────────────────────────────────────────────────────────────
	agentSvcInstance := agentsvc.NewService(registry, bus)
	controlSvcInstance := controlsvc.NewService(registry, queue, store, bus, controlsvc.PausePolicy(cfg.Scheduler.PausePolicy))
	healthSvcInstance := healthsvc.NewService(registry, bus, cfg.Health.HeartbeatTimeout, cfg.Health.CheckInterval)
	taskSvcInstance := tasksvc.NewService(store, queue, registry, bus, archive)
	metricsSvcInstance := metricssvc.NewService(registry, queue, store)

	scheduler := schedulersvc.NewService(queue, store, registry, registry, bus, hub, cfg.Scheduler.Workers)
	if err := scheduler.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting scheduler: %w", err)
	}

	// ── Transport ─────────────────────────────────────────────────────────────
	router := transport.NewRouter(
		ctx,
		agentSvcInstance,
		controlSvcInstance,
		healthSvcInstance,
		taskSvcInstance,
		metricsSvcInstance,
		hub,
		bus,
	)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	slog.Info("application wired", "port", cfg.Server.Port, "workers", cfg.Scheduler.Workers)

	return &App{
		Pool:      pool,
		Server:    server,
		HealthSvc: healthSvcInstance,
	}, nil
}
