package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fieldops/intervention-service/internal/api/http"
	"github.com/fieldops/intervention-service/internal/api/http/handlers"
	"github.com/fieldops/intervention-service/internal/auth"
	"github.com/fieldops/intervention-service/internal/config"
	"github.com/fieldops/intervention-service/internal/events"
	"github.com/fieldops/intervention-service/internal/mq"
	"github.com/fieldops/intervention-service/internal/observability"
	"github.com/fieldops/intervention-service/internal/persistence"
	"github.com/fieldops/intervention-service/internal/repository"
	"github.com/fieldops/intervention-service/internal/repository/memory"
	"github.com/fieldops/intervention-service/internal/service"
	"github.com/fieldops/intervention-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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

	var repos repository.Set
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repository.NewPostgresSet(pg.PoolHandle())
	} else {
		repos = memory.NewStore().Set()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var mailer mq.Mailer = mq.NewLogMailer(logger.Named("mailer"))
	if cfg.RabbitMQ.URL != "" {
		publisher, err := mq.NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.MailExchange, logger)
		if err != nil {
			logger.Warn("rabbitmq unavailable; invoice emails will only be logged", zap.Error(err))
		} else {
			defer publisher.Close() //nolint:errcheck
			mailer = mq.NewBrokerMailer(publisher, cfg.RabbitMQ.InvoiceMailsKey)
		}
	}

	dispatcher := events.NewInMemoryDispatcher(logger.Named("events"))
	services, err := service.NewServices(repos, dispatcher, mailer, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	worker.StartNotificationWorker(services.Notifications, dispatcher, redis, cfg.Redis.EventChannel)

	if _, err := services.Catalog.EnsureServiceProduct(ctx, cfg.Billing); err != nil {
		logger.Fatal("failed to ensure service product", zap.Error(err))
	}

	reminders := worker.NewReminderJob(services.Interventions, redis, cfg.Scheduler.ReminderWindow, logger.Named("reminders"))
	scheduler, err := worker.StartReminders(cfg.Scheduler, reminders, logger)
	if err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	probes := map[string]handlers.Pinger{"redis": redis}
	if pg.Enabled() {
		probes["postgres"] = pg
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, probes),
		Interventions:  handlers.NewInterventionsHandler(services.Interventions, services.Billing, services.Stock, metrics),
		Parts:          handlers.NewPartsHandler(services.Stock, metrics),
		Technicians:    handlers.NewTechniciansHandler(services.Technicians),
		Clients:        handlers.NewClientsHandler(services.Clients, services.Interventions, metrics),
		Catalog:        handlers.NewCatalogHandler(services.Catalog),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if scheduler != nil {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(10 * time.Second):
			logger.Warn("scheduled jobs still running at shutdown")
		}
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
