package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/api/interactions"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform/discord"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/internal/worker"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo  repository.TicketRepository
		historyRepo repository.TicketHistoryRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		historyRepo = repository.NewTicketHistoryRepository(pool)
	} else {
		logger.Warn("POSTGRES_DSN not set; tickets are kept in memory and lost on restart")
		ticketRepo = repository.NewMemoryTicketRepository()
		historyRepo = repository.NewMemoryTicketHistoryRepository()
	}
	ticketRepo = repository.NewCachedTicketRepository(ticketRepo, redis.Handle(), cfg.Redis.TicketTTL(), logger)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	var publisher events.Publisher
	if cfg.Events.AMQPURL != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			logger.Warn("event broker unavailable; events stay in process", zap.Error(err))
		} else {
			defer rabbit.Close() //nolint:errcheck
			publisher = rabbit
		}
	}
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		History:    historyRepo,
		Publisher:  publisher,
		Metrics:    metrics,
		Logger:     logger,
	})
	worker.StartNotificationWorker(notifications)

	var archive transcript.Archiver
	minioArchive, err := transcript.NewMinioArchive(ctx, cfg.Archive)
	switch {
	case err != nil:
		logger.Warn("transcript archive unavailable", zap.Error(err))
	case minioArchive != nil:
		archive = minioArchive
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Platform:   discord.NewAdapter(session),
		Dispatcher: dispatcher,
		Archive:    archive,
		Bindings:   service.NewControlBindings(),
		Config:     cfg.Tickets,
		Logger:     logger,
	})

	router := interactions.NewRouter(ticketService, ticketService.Staff(), ticketService.Bindings(), logger)
	gateway := discord.NewGateway(session, cfg.Discord.GuildID, logger,
		discord.Command{Name: interactions.CommandPanel, Description: "Post the ticket panel in this channel"},
		discord.Command{Name: interactions.CommandStats, Description: "Show ticket statistics"},
	)
	if err := gateway.Start(ctx, router); err != nil {
		logger.Fatal("failed to start discord gateway", zap.Error(err))
	}

	report, err := ticketService.Reattach(ctx)
	if err != nil {
		logger.Error("reattach controls failed", zap.Error(err))
	} else {
		logger.Info("controls reattached", zap.Int("bound", report.Bound), zap.Int("skipped", report.Skipped))
	}

	guilds := func() []string {
		ids := gateway.GuildIDs()
		if cfg.Discord.GuildID != "" {
			ids = append(ids, cfg.Discord.GuildID)
		}
		return ids
	}
	sweeps := worker.StartSweeps(ctx, logger, metrics,
		worker.InactivitySweep(ticketService, cfg.Tickets.InactivitySweepInterval()),
		worker.StatusRefreshSweep(ticketService, cfg.Tickets.StatusRefreshInterval()),
		worker.ReconcileSweep(ticketService, cfg.Tickets.ReconcileInterval(), guilds),
	)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	probes := []handlers.Probe{{Name: "postgres"}, {Name: "redis"}}
	if pg.PoolHandle() != nil {
		probes[0].Ping = pg.Ping
	}
	if redis.Handle() != nil {
		probes[1].Ping = redis.Ping
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, probes...),
		Tickets:        handlers.NewTicketsHandler(ticketService, notifications, metrics, cfg.Discord.GuildID),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
	if err := gateway.Close(); err != nil {
		logger.Warn("discord gateway close failed", zap.Error(err))
	}
	sweeps.Wait()
	// Countdowns already running keep going until their channels are deleted.
	ticketService.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
