package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/siteharvest/ingest-engine/internal/config"
	"github.com/siteharvest/ingest-engine/internal/event"
	"github.com/siteharvest/ingest-engine/internal/handler"
	"github.com/siteharvest/ingest-engine/internal/infra/postgresql"
	"github.com/siteharvest/ingest-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/siteharvest/ingest-engine/internal/infra/redis"
	"github.com/siteharvest/ingest-engine/internal/notifier"
	"github.com/siteharvest/ingest-engine/internal/observability"
	"github.com/siteharvest/ingest-engine/internal/relay"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"github.com/siteharvest/ingest-engine/internal/service"
	"github.com/siteharvest/ingest-engine/internal/storage"
	"github.com/siteharvest/ingest-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("ingest engine stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	objects, err := storage.NewMinioStorage(storage.MinioConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return fmt.Errorf("object storage initialization failed: %w", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("object storage bucket check failed: %w", err)
	}

	batchRepo := repository.NewGormBatchRepo(db)
	uploadRepo := repository.NewGormUploadRepo(db)
	errorLogRepo := repository.NewGormErrorLogRepo(db)
	siteRepo := repository.NewGormSiteRepo(db)

	bus := event.NewBus(logger)
	metrics := observability.NewMetrics()

	lifecycle, err := service.NewBatchLifecycleService(batchRepo, siteRepo, bus, logger)
	if err != nil {
		return err
	}
	lifecycle.SetMetrics(metrics)

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.UploadRatePerSec)
	if err != nil {
		return err
	}

	uploads, err := service.NewUploadService(lifecycle, uploadRepo, objects, limiter, logger)
	if err != nil {
		return err
	}
	uploads.SetMetrics(metrics)

	errorIngest, err := service.NewErrorIngestService(errorLogRepo, batchRepo, bus, logger)
	if err != nil {
		return err
	}
	errorIngest.SetMetrics(metrics)

	accounts, err := service.NewAccountService(siteRepo, bus, logger)
	if err != nil {
		return err
	}

	sweeper, err := service.NewTimeoutSweeper(batchRepo, bus, cfg.SweepInterval(), cfg.BatchTTL(), cfg.SweepLimit, logger)
	if err != nil {
		return err
	}
	sweeper.SetMetrics(metrics)

	service.RegisterSiteCascade(bus, siteRepo, logger)

	webhooks, err := notifier.NewWebhookNotifier(siteRepo, logger)
	if err != nil {
		return err
	}
	webhooks.Register(bus)

	var eventRelay *relay.EventRelay
	if cfg.AMQPURL != "" {
		rmq, err := relay.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		eventRelay, err = relay.NewEventRelay(rmq, logger)
		if err != nil {
			return err
		}
		eventRelay.Register(bus)
		defer eventRelay.Close()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
		BodyLimit:    int(cfg.MaxUploadSizeBytes()) + 1<<20,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	identity := handler.SiteIdentity(siteRepo)
	if err := handler.RegisterBatchRoutes(app, identity, lifecycle, uploads, cfg.MaxUploadSizeBytes()); err != nil {
		return err
	}
	if err := handler.RegisterErrorLogRoutes(app, identity, errorIngest); err != nil {
		return err
	}
	if err := handler.RegisterAdminRoutes(app, accounts); err != nil {
		return err
	}
	handler.RegisterHealthRoutes(app, sqlDB, rdb, objects)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("ingest engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		return sweeper.Start(groupCtx)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.Shutdown()
	})

	return g.Wait()
}
