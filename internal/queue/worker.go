package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zombar/communityanalyzer/internal/metrics"
)

// queuePriorities maps queue names to asynq weights; higher runs more often
var queuePriorities = map[string]int{
	QueueRefresh:  6,
	QueueAnalysis: 3,
}

// retryDelays is the backoff between attempts at a failing analysis
var retryDelays = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
}

// Worker wraps the Asynq server for processing tasks
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	processor   *Processor
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.BusinessMetrics
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr     string
	RedisPassword string
	Concurrency   int
	Metrics       *metrics.BusinessMetrics
	Logger        *slog.Logger
}

// NewWorker creates a new queue worker
func NewWorker(cfg WorkerConfig, processor *Processor) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	redisOpt := ClientConfig{RedisAddr: cfg.RedisAddr, RedisPassword: cfg.RedisPassword}.RedisOpt()

	serverCfg := asynq.Config{
		Concurrency:    cfg.Concurrency,
		Queues:         queuePriorities,
		StrictPriority: false,
		RetryDelayFunc: retryDelay,

		// Graceful shutdown timeout
		ShutdownTimeout: 30 * time.Second,

		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)

			logger.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
				"retry_count", retried,
				"max_retries", maxRetry,
			)
		}),
		Logger: newAsynqLogger(logger),
	}

	w := &Worker{
		server:      asynq.NewServer(redisOpt, serverCfg),
		mux:         asynq.NewServeMux(),
		processor:   processor,
		concurrency: cfg.Concurrency,
		logger:      logger,
		metrics:     cfg.Metrics,
	}

	w.registerHandlers()

	return w
}

// registerHandlers registers all task handlers with the worker
func (w *Worker) registerHandlers() {
	w.mux.HandleFunc(TypeAnalyzeSubreddit, w.handleAnalyzeSubreddit)
}

// Start runs the worker until Shutdown. It blocks.
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queues", queuePriorities,
	)

	if err := w.server.Run(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}

// Server returns the underlying Asynq server (for testing)
func (w *Worker) Server() *asynq.Server {
	return w.server
}

// retryDelay returns the wait before retry n
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < len(retryDelays) {
		return retryDelays[n]
	}
	return retryDelays[len(retryDelays)-1]
}

// asynqLogger routes asynq's internal logging through slog
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
