package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	_ "github.com/erp/wmssync/docs"
	"github.com/erp/wmssync/internal/application/wmssync"
	"github.com/erp/wmssync/internal/domain/shared"
	"github.com/erp/wmssync/internal/infrastructure/auth"
	"github.com/erp/wmssync/internal/infrastructure/cache"
	"github.com/erp/wmssync/internal/infrastructure/config"
	"github.com/erp/wmssync/internal/infrastructure/event"
	"github.com/erp/wmssync/internal/infrastructure/logger"
	"github.com/erp/wmssync/internal/infrastructure/persistence"
	"github.com/erp/wmssync/internal/infrastructure/picqer"
	"github.com/erp/wmssync/internal/infrastructure/scheduler"
	"github.com/erp/wmssync/internal/infrastructure/storage"
	"github.com/erp/wmssync/internal/infrastructure/telemetry"
	"github.com/erp/wmssync/internal/interfaces/http/handler"
	"github.com/erp/wmssync/internal/interfaces/http/middleware"
	"github.com/erp/wmssync/internal/interfaces/http/router"
)

//go:generate swag init --dir ../.. --generalInfo cmd/server/main.go --output ../../docs

//	@title			WMS Sync API
//	@version		1.0
//	@description	Synchronises a commerce backend with the Picqer warehouse management system.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.NewProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = tel.WrapLogger(log, zapcore.InfoLevel)

	profiler, err := telemetry.NewProfiler(cfg.Profiler, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && cfg.Profiler.SpanProfiles {
		tel.EnableSpanProfiles()
	}

	log.Info("Starting WMS sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("telemetry", tel.IsEnabled()),
	)

	syncMetrics := telemetry.NewNoopSyncMetrics()
	var httpMeter metric.Meter
	if tel.IsEnabled() {
		httpMeter = tel.Meter("wmssync/http")
		if syncMetrics, err = telemetry.NewSyncMetrics(tel.Meter("wmssync")); err != nil {
			log.Fatal("Failed to create sync metrics", zap.Error(err))
		}
	}

	// Database
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, logger.NewSQLLogger(log, cfg.Log.Level, 0))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if tel.IsEnabled() {
		if err := telemetry.RegisterDBTracing(db.DB, db.Driver()); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}
	if db.Driver() == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", db.Driver()))

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	// Adapters
	commerceStore := persistence.NewGormCommerceStore(db.DB)
	tenantConfigs := persistence.NewGormTenantConfigRepository(db.DB)
	clients := picqer.NewClientCache(picqer.ClientCacheConfig{
		TTL:            cfg.WMS.ClientCacheTTL,
		TimeoutSeconds: int(cfg.WMS.HTTPTimeout.Seconds()),
		AppName:        cfg.WMS.AppName,
	}, log)
	assets, err := storage.NewAssetReader(&cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize asset storage", zap.Error(err))
	}

	storeOpts := []cache.IdempotencyStoreFactoryOption{cache.WithLogger(log)}
	if redisClient != nil {
		storeOpts = append(storeOpts, cache.WithRedisClient(redisClient))
	}
	dedupe, err := cache.NewIdempotencyStoreFactory(cfg.Redis, storeOpts...).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer dedupe.Close()

	bus := event.NewInMemoryEventBus(log)

	// Sync services
	catalog := wmssync.NewCatalogExporter(wmssync.CatalogExporterConfig{
		Catalog: commerceStore,
		Assets:  assets,
		Metrics: syncMetrics,
		Logger:  log,
	})
	stock := wmssync.NewStockReconciler(wmssync.StockReconcilerConfig{
		Catalog:   commerceStore,
		Publisher: bus,
		Metrics:   syncMetrics,
		Logger:    log,
	})
	orders, err := wmssync.NewOrderExporter(wmssync.OrderExporterConfig{
		Orders:       commerceStore,
		Catalog:      catalog,
		HandlerCode:  cfg.WMS.HandlerCode,
		NoteTemplate: cfg.WMS.OrderNoteTemplate,
		Metrics:      syncMetrics,
		Logger:       log,
	})
	if err != nil {
		log.Fatal("Invalid order note template", zap.Error(err))
	}
	fulfillment := wmssync.NewFulfillmentService(wmssync.FulfillmentServiceConfig{
		Orders:      commerceStore,
		HandlerCode: cfg.WMS.HandlerCode,
		Logger:      log,
	})
	jobHandler := wmssync.NewSyncJobHandler(wmssync.SyncJobHandlerConfig{
		Channels: commerceStore,
		Configs:  tenantConfigs,
		Clients:  clients,
		Catalog:  catalog,
		Stock:    stock,
		Orders:   orders,
		Logger:   log,
	})

	// Job queue
	var jobStore scheduler.JobStore
	switch cfg.Queue.Backend {
	case "redis":
		jobStore = scheduler.NewRedisJobStore(redisClient, cfg.Queue.Name, cfg.Queue.QueueSize)
	default:
		jobStore = scheduler.NewMemoryJobStore(cfg.Queue.QueueSize)
	}
	dispatcher, err := scheduler.NewSyncDispatcher(scheduler.DispatcherConfig{
		Name:           cfg.Queue.Name,
		Workers:        cfg.Queue.WorkerCount,
		MaxRetries:     cfg.Queue.MaxRetries,
		BaseRetryDelay: cfg.Queue.BaseRetryDelay,
		MaxRetryDelay:  cfg.Queue.MaxRetryDelay,
		JobTimeout:     cfg.Queue.JobTimeout,
		PollInterval:   cfg.Queue.PollInterval,
	}, jobStore, jobHandler, syncMetrics, log)
	if err != nil {
		log.Fatal("Failed to create sync dispatcher", zap.Error(err))
	}

	configService := wmssync.NewConfigService(wmssync.ConfigServiceConfig{
		Configs:    tenantConfigs,
		Clients:    clients,
		PublicHost: cfg.App.PublicHost,
		PathPrefix: cfg.WMS.PathPrefix,
		AppName:    cfg.WMS.AppName,
		Logger:     log,
	})
	fullSync := wmssync.NewFullSyncService(wmssync.FullSyncServiceConfig{
		Catalog:   commerceStore,
		Queue:     dispatcher,
		PageSize:  cfg.Sync.FullSyncPageSize,
		BatchSize: cfg.Sync.FullSyncBatchSize,
		Logger:    log,
	})
	webhooks := wmssync.NewWebhookService(wmssync.WebhookServiceConfig{
		Channels:    commerceStore,
		Configs:     tenantConfigs,
		Clients:     clients,
		Stock:       stock,
		Fulfillment: fulfillment,
		Dedupe:      dedupe,
		DedupeTTL:   cfg.WMS.WebhookDedupeTTL,
		Metrics:     syncMetrics,
		Logger:      log,
	})

	// Commerce events enqueue sync jobs; redelivered events are skipped.
	subscriber := wmssync.NewSyncEventSubscriber(wmssync.SyncEventSubscriberConfig{
		Queue:    dispatcher,
		Channels: commerceStore,
		Logger:   log,
	})
	bus.Subscribe(
		event.NewIdempotentHandler(subscriber, dedupe, shared.DefaultIdempotencyConfig(), log),
		subscriber.EventTypes()...,
	)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Kafka.Enabled {
		serializer := event.NewCommerceEventSerializer()
		forwarder := event.NewKafkaStockMovementForwarder(cfg.Kafka.Brokers, cfg.Kafka.StockTopic, cfg.Kafka.WriteTimeout, serializer)
		defer forwarder.Close()
		bus.Subscribe(forwarder, forwarder.EventTypes()...)

		consumer := event.NewKafkaEventConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.EventsTopic, serializer, bus, log)
		defer consumer.Close()
		g.Go(func() error {
			return consumer.Run(gctx)
		})
		log.Info("Kafka bridge enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("events_topic", cfg.Kafka.EventsTopic),
			zap.String("stock_topic", cfg.Kafka.StockTopic),
		)
	}

	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	if err := dispatcher.Start(ctx); err != nil {
		log.Fatal("Failed to start sync dispatcher", zap.Error(err))
	}

	// HTTP
	tokens, err := auth.NewJWTService(cfg.JWT)
	if err != nil {
		log.Fatal("Failed to initialize JWT service", zap.Error(err))
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewEngine(router.EngineConfig{
		Logger:        log,
		HTTP:          cfg.HTTP,
		WebhookPrefix: cfg.WMS.PathPrefix,
		Docs:          cfg.Swagger,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tel.IsEnabled(),
		},
		Meter:    httpMeter,
		Tokens:   tokens,
		Health:   handler.NewHealthHandler(db),
		Webhooks: handler.NewWebhookHandler(webhooks, cfg.HTTP.MaxBodySize),
		Admin: handler.NewWMSAdminHandler(handler.WMSAdminHandlerConfig{
			Channels: commerceStore,
			Configs:  configService,
			FullSync: fullSync,
			Queue:    dispatcher,
		}),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           engine,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown: stop accepting webhooks first, then drain the queue.
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return multierr.Combine(
			srv.Shutdown(shutdownCtx),
			dispatcher.Stop(shutdownCtx),
			bus.Stop(shutdownCtx),
			tel.Shutdown(shutdownCtx),
			profiler.Stop(),
		)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}
