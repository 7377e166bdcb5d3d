package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zombar/communityanalyzer/internal/api"
	"github.com/zombar/communityanalyzer/internal/config"
	"github.com/zombar/communityanalyzer/internal/database"
	"github.com/zombar/communityanalyzer/internal/metrics"
	"github.com/zombar/communityanalyzer/internal/queue"
	"github.com/zombar/communityanalyzer/internal/tracing"
	"github.com/zombar/communityanalyzer/pkg/logging"
)

const serviceName = "communityanalyzer"

func main() {
	if err := config.LoadEnvFile(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	// Setup structured logging with JSON output
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("communityanalyzer service initializing", "version", "1.0.0")

	tp, err := tracing.InitTracerWithEndpoint(serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized", "otlp_endpoint", cfg.OTLPEndpoint)
	}

	db, err := database.New(cfg.DatabaseDSN)
	if err != nil {
		logger.Error("failed to initialize database", "error", err, "driver", database.DriverFor(cfg.DatabaseDSN))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbMetrics := metrics.NewDatabaseMetrics(serviceName, prometheus.DefaultRegisterer)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dbMetrics.UpdateDBStats(db.Conn())
			}
		}
	}()

	businessMetrics := metrics.NewBusinessMetrics(serviceName, prometheus.DefaultRegisterer)
	httpMetrics := metrics.NewHTTPMetrics(serviceName, prometheus.DefaultRegisterer)

	customPatterns, err := cfg.CustomPatterns()
	if err != nil {
		logger.Error("failed to load custom patterns", "error", err, "file", cfg.CustomPatternsFile)
		os.Exit(1)
	}

	processor := queue.NewProcessor(db, queue.ProcessorConfig{
		Workers:        cfg.ExtractWorkers,
		CustomPatterns: customPatterns,
		Metrics:        businessMetrics,
		Logger:         logger,
	})

	opts := api.Options{Metrics: businessMetrics, Logger: logger}

	var worker *queue.Worker
	if cfg.UseQueue {
		client := queue.NewClient(queue.ClientConfig{RedisAddr: cfg.RedisAddr, RedisPassword: cfg.RedisPassword})
		defer client.Close()
		opts.Queue = client

		worker = queue.NewWorker(queue.WorkerConfig{
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			Concurrency:   cfg.QueueConcurrency,
			Metrics:       businessMetrics,
			Logger:        logger,
		}, processor)

		go func() {
			if err := worker.Start(); err != nil {
				logger.Error("queue worker stopped", "error", err)
				stop()
			}
		}()
	} else {
		logger.Info("queue disabled, analyses run inside requests")
	}

	// Middleware chain: HTTP logging -> tracing -> metrics -> handlers
	handler := logging.HTTPLoggingMiddleware(logger)(
		tracing.HTTPMiddleware(serviceName)(
			httpMetrics.Middleware(api.NewHandler(db, processor, opts)),
		),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // synchronous analyses of large campaigns
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("communityanalyzer service starting",
			"port", cfg.Port,
			"driver", db.Driver(),
			"queue_enabled", cfg.UseQueue,
			"redis_addr", cfg.RedisAddr,
			"custom_patterns", len(customPatterns),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed to start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if worker != nil {
		worker.Shutdown()
	}

	logger.Info("server stopped")
}
