package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/DouglasAntonni/serverwpp/internal/config"
	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"github.com/DouglasAntonni/serverwpp/internal/events"
	"github.com/DouglasAntonni/serverwpp/internal/gateway"
	"github.com/DouglasAntonni/serverwpp/internal/handler"
	"github.com/DouglasAntonni/serverwpp/internal/infra/postgresql"
	"github.com/DouglasAntonni/serverwpp/internal/infra/postgresql/migrations"
	infraredis "github.com/DouglasAntonni/serverwpp/internal/infra/redis"
	"github.com/DouglasAntonni/serverwpp/internal/observability"
	"github.com/DouglasAntonni/serverwpp/internal/pacing"
	"github.com/DouglasAntonni/serverwpp/internal/repository"
	"github.com/DouglasAntonni/serverwpp/internal/roster"
	"github.com/DouglasAntonni/serverwpp/internal/service"
	"github.com/DouglasAntonni/serverwpp/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	transportClient, err := gateway.NewHTTPClient(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewaySession)
	if err != nil {
		logger.Fatal("gateway client initialization failed", zap.Error(err))
	}

	pacer, err := pacing.NewRandomPacer(
		time.Duration(cfg.PacingMinMs)*time.Millisecond,
		time.Duration(cfg.PacingMaxMs)*time.Millisecond,
	)
	if err != nil {
		logger.Fatal("pacer initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	publisher := events.NewRedisPublisher(rdb, cfg.EventsChannel, logger)
	messages := repository.NewGormMessageRepo(db)

	ledger, err := service.NewLedger(messages, publisher, logger)
	if err != nil {
		logger.Fatal("ledger initialization failed", zap.Error(err))
	}

	selfAddress := ""
	if cfg.SelfNumber != "" {
		selfAddress, _ = domain.NormalizeAddress(cfg.SelfNumber)
	}

	dispatcher, err := service.NewDispatchService(ledger, transportClient, pacer, publisher, selfAddress, logger)
	if err != nil {
		logger.Fatal("dispatch service initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	reconciler, err := service.NewReconciler(ledger, messages, logger)
	if err != nil {
		logger.Fatal("reconciler initialization failed", zap.Error(err))
	}
	reconciler.SetMetrics(metrics)

	inbound, err := service.NewInboundService(ledger, transportClient, selfAddress, cfg.AutoReplyText, cfg.ForwardNumber, logger)
	if err != nil {
		logger.Fatal("inbound service initialization failed", zap.Error(err))
	}
	inbound.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
		BodyLimit:    32 << 20,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	handler.RegisterHealthRoutes(app, sqlDB, rdb, transportClient)
	if err := handler.RegisterDispatchRoutes(app, dispatcher, roster.NewParser(logger)); err != nil {
		logger.Fatal("dispatch routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterMessageRoutes(app, messages); err != nil {
		logger.Fatal("message routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterWebhookRoutes(app, reconciler, inbound, logger); err != nil {
		logger.Fatal("webhook routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("serverwpp api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", zap.Error(err))
	}
}
