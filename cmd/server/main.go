package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/mkteagle/teaglink/config"
	appmodel "github.com/mkteagle/teaglink/internal/app/model"
	apprepository "github.com/mkteagle/teaglink/internal/app/repository"
	appserver "github.com/mkteagle/teaglink/internal/app/server"
	appservice "github.com/mkteagle/teaglink/internal/app/service"
	"github.com/mkteagle/teaglink/internal/infra/logger"
	infraNATS "github.com/mkteagle/teaglink/internal/infra/nats"
	infraPostgres "github.com/mkteagle/teaglink/internal/infra/postgres"
	infraPrometheus "github.com/mkteagle/teaglink/internal/infra/prometheus"
	infraRedis "github.com/mkteagle/teaglink/internal/infra/redis"
	"github.com/mkteagle/teaglink/internal/qr"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("base_url", cfg.App.BaseURL),
		zap.Int("port", cfg.App.Port),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.Link{},
		&appmodel.ScanEvent{},
		&appmodel.User{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		// The link cache and rate limiter degrade gracefully without Redis.
		log.Warn("Redis unavailable, running without cache", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info("Connected to Redis successfully")
	}

	linkRepo := apprepository.NewLinkRepository(gormDB)
	scanRepo := apprepository.NewScanRepository(gormDB)
	userRepo := apprepository.NewUserRepository(gormDB)

	generator := appservice.NewShortIDGenerator(linkRepo)
	if err := generator.Warm(ctx); err != nil {
		log.Warn("Failed to warm id filter, continuing cold", zap.Error(err))
	}

	// Prefer the JetStream scan pipeline; fall back to direct writes when
	// NATS is not around. Recording stays best-effort either way.
	var sink appservice.ScanSink = appservice.NewRepositoryScanSink(scanRepo)
	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Warn("NATS unavailable, writing scans directly", zap.Error(err))
	} else {
		defer natsConn.Drain()
		log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

		consumer := appservice.NewScanConsumer(js, log, scanRepo)
		if err := consumer.Start(); err != nil {
			log.Fatal("Failed to start scan consumer", zap.Error(err))
		}
		sink = appservice.NewStreamScanSink(js)
	}

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	cache := appservice.NewLinkCache(redisClient)
	recorder := appservice.NewScanRecorder(log, sink)
	resolver := appservice.NewRedirectResolver(log, linkRepo, cache, recorder)

	linkService := appservice.NewLinkService(appservice.LinkServiceDeps{
		Logger:   log,
		Links:    linkRepo,
		Scans:    scanRepo,
		Users:    userRepo,
		Gen:      generator,
		Renderer: qr.NewRenderer(cfg.App.QRSize),
		Cache:    cache,
		BaseURL:  cfg.App.BaseURL,
	})

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		Postgres:    pool,
		Redis:       redisClient,
		LinkService: linkService,
		Resolver:    resolver,
		BaseURL:     cfg.App.BaseURL,
	})

	if err := server.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
