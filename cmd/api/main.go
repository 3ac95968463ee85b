package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fieldops/maintenance-ticketing/internal/api/http"
	"github.com/fieldops/maintenance-ticketing/internal/api/http/handlers"
	"github.com/fieldops/maintenance-ticketing/internal/auth"
	"github.com/fieldops/maintenance-ticketing/internal/config"
	"github.com/fieldops/maintenance-ticketing/internal/events"
	"github.com/fieldops/maintenance-ticketing/internal/lifecycle"
	"github.com/fieldops/maintenance-ticketing/internal/observability"
	"github.com/fieldops/maintenance-ticketing/internal/persistence"
	"github.com/fieldops/maintenance-ticketing/internal/refcode"
	"github.com/fieldops/maintenance-ticketing/internal/repository"
	"github.com/fieldops/maintenance-ticketing/internal/service"
	"github.com/fieldops/maintenance-ticketing/internal/sla"
	"github.com/fieldops/maintenance-ticketing/internal/worker"
	"github.com/fieldops/maintenance-ticketing/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo  repository.TicketRepository
		historyRepo repository.StatusHistoryRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		historyRepo = repository.NewStatusHistoryRepository(pool)
		metrics.RegisterPgxPool(pool)
	} else {
		store := repository.NewMemoryStore()
		ticketRepo = store
		historyRepo = store
	}

	var sequencer refcode.Sequencer
	switch {
	case redis.Enabled():
		sequencer = refcode.NewRedisSequencer(redis.Client)
		logger.Info("reference codes sequenced by redis")
	case pg.Enabled():
		sequencer = repository.NewReferenceCounterRepository(pg.PoolHandle())
		logger.Info("reference codes sequenced by postgres")
	default:
		sequencer = refcode.NewMemorySequencer()
		logger.Warn("reference codes sequenced in memory; counters reset on restart")
	}

	matrix, err := sla.LoadMatrix(cfg.SLA.MatrixPath)
	if err != nil {
		logger.Fatal("failed to load sla matrix", zap.Error(err), zap.String("path", cfg.SLA.MatrixPath))
	}

	engine := lifecycle.New(workflow.NewMachine(nil), cfg.Geofence.ToleranceMeters)
	dispatcher := events.NewInMemoryDispatcher()

	webhook := worker.NewWebhookWorker(cfg.Notification, logger)
	metrics.RegisterWebhookDelivery(webhook)
	notificationService := service.NewNotificationService(dispatcher, logger, webhook)
	worker.StartNotificationWorker(ctx, notificationService, webhook)
	defer webhook.Stop()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		References:  refcode.NewGenerator(sequencer),
		Engine:      engine,
		Clock:       sla.NewClock(matrix, cfg.SLA.AtRiskFraction),
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Workflow:       handlers.NewWorkflowHandler(ticketService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
