package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/communityanalyzer/internal/metrics"
	"github.com/zombar/communityanalyzer/internal/scoring"
)

const tracerName = "communityanalyzer"

// handleAnalyzeSubreddit runs one subreddit analysis task
func (w *Worker) handleAnalyzeSubreddit(ctx context.Context, t *asynq.Task) error {
	var payload AnalyzeSubredditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}

	queueWait := payload.queueWait(time.Now())
	retryCount, _ := asynq.GetRetryCount(ctx)

	w.logger.Info("analyzing subreddit",
		"campaign_id", payload.CampaignID,
		"subreddit", payload.Subreddit,
		"force_refresh", payload.ForceRefresh,
		"retry_count", retryCount,
		"queue_wait_seconds", queueWait.Seconds(),
	)

	ctx, span := startTaskSpan(ctx, payload, queueWait)
	defer span.End()
	if w.metrics != nil && queueWait > 0 {
		metrics.ObserveWithExemplar(ctx, w.metrics.QueueWait, queueWait.Seconds())
	}

	outcome, err := w.processor.Process(ctx, payload.CampaignID, payload.Subreddit, payload.ForceRefresh)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return classifyTaskError(err)
	}

	span.SetAttributes(attribute.Bool("analysis.up_to_date", outcome.UpToDate))
	if outcome.Profile != nil {
		span.SetAttributes(
			attribute.Float64("analysis.isc", outcome.Profile.ISCScore),
			attribute.Int("analysis.sample_size", outcome.Profile.SampleSize),
		)
	}
	return nil
}

// queueWait returns how long the task waited since it was enqueued
func (p AnalyzeSubredditPayload) queueWait(now time.Time) time.Duration {
	if p.EnqueuedAt <= 0 {
		return 0
	}
	return now.Sub(time.Unix(0, p.EnqueuedAt))
}

// startTaskSpan starts the consumer span, continuing the trace recorded in
// the payload when present
func startTaskSpan(ctx context.Context, payload AnalyzeSubredditPayload, queueWait time.Duration) (context.Context, trace.Span) {
	if remote, ok := remoteSpanContext(payload); ok {
		ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "asynq.task.analyze_subreddit",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("task.type", TypeAnalyzeSubreddit),
			attribute.String("task.id", payload.TaskID()),
			attribute.String("campaign.id", payload.CampaignID),
			attribute.String("subreddit", payload.Subreddit),
			attribute.Bool("force_refresh", payload.ForceRefresh),
			attribute.Float64("queue.wait_time_seconds", queueWait.Seconds()),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		),
	)
	span.AddEvent("task_processing_started", trace.WithAttributes(
		attribute.Float64("wait_time_seconds", queueWait.Seconds()),
	))
	return ctx, span
}

// remoteSpanContext rebuilds the enqueuing span context from the payload
func remoteSpanContext(payload AnalyzeSubredditPayload) (trace.SpanContext, bool) {
	if payload.TraceID == "" || payload.SpanID == "" {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(payload.TraceID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(payload.SpanID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}), true
}

// classifyTaskError decides whether asynq should retry a failed task.
// Insufficient data and other permanent failures skip retries.
func classifyTaskError(err error) error {
	var insufficient *scoring.InsufficientDataError
	if errors.As(err, &insufficient) {
		return fmt.Errorf("subreddit skipped: %v: %w", err, asynq.SkipRetry)
	}
	if isRetriable(err) {
		return err
	}
	return fmt.Errorf("analysis failed: %v: %w", err, asynq.SkipRetry)
}

// isRetriable reports whether err is a transient failure
func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStorage) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	retriablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"database is locked",
		"too many connections",
		"i/o timeout",
		"no such host",
		"network is unreachable",
	}

	for _, pattern := range retriablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
