package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ragapi/docs"
	"ragapi/internal/access"
	"ragapi/internal/config"
	"ragapi/internal/database"
	"ragapi/internal/database/migration"
	handlers "ragapi/internal/http/handler"
	"ragapi/internal/http/middleware"
	"ragapi/internal/logger"
	ragotel "ragapi/internal/otel"
	"ragapi/internal/ragclient"
	"ragapi/internal/repository/postgres"
	"ragapi/internal/service"
	"ragapi/internal/storage"
)

// multipartOverhead leaves room for boundaries and part headers around the file.
const multipartOverhead = 64 << 10

// @title RAG API
// @version 1.0
// @description Document ingestion and question answering in front of a RAG service.
// @BasePath /
func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := ragotel.Init(ctx, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	// The database is connected before serving and never reconnected mid-request.
	dbHandle, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := dbHandle.Close(); err != nil {
			log.Warn("database close failed", zap.Error(err))
		}
	}()
	db := dbHandle.DB()
	log.Info("database connected")

	if err := migration.EnsureMigrated(ctx, db, log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var archive storage.Storage
	if cfg.MinIO.Enabled() {
		archive, err = storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return fmt.Errorf("init object storage: %w", err)
		}
		log.Info("raw upload archive enabled", zap.String("bucket", cfg.MinIO.Bucket))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "postgres"),
	)

	ragMetrics, err := ragclient.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register rag metrics: %w", err)
	}
	rag, err := ragclient.New(ragclient.Options{
		BaseURL:   cfg.RAG.BaseURL,
		Timeout:   cfg.RAG.Timeout(),
		Logger:    log,
		Metrics:   ragMetrics,
		RateLimit: cfg.RAG.RateLimit,
		RateBurst: cfg.RAG.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("init rag client: %w", err)
	}

	docRepo := postgres.NewDocumentPostgres(db)
	docSvc := service.NewDocumentService(docRepo, rag, archive, log, cfg.MaxUploadBytes)
	qaSvc := service.NewQAService(rag, log)
	healthSvc := service.NewHealthService(dbHandle, rag, cfg.RAG.HealthTimeout(), log)

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "ragapi",
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             int(cfg.MaxUploadBytes) + multipartOverhead,
		DisableStartupMessage: true,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.Environment == "development"}))
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics"
	})))
	app.Use(promMiddleware.Handler())
	app.Use(middleware.CORS(access.NewPolicy(cfg.AllowedOrigins)))

	handlers.RegisterRoutes(app, docSvc, qaSvc, healthSvc)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", handlers.SwaggerUI(docs.SwaggerInfo))

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", addr), zap.Strings("allowed_origins", cfg.AllowedOrigins))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}
