package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Task type constants
const (
	TypeAnalyzeSubreddit = "analysis:subreddit"
)

// Queue names. Forced refreshes are requested by a user and jump ahead of
// routine analyses.
const (
	QueueRefresh  = "analysis-refresh"
	QueueAnalysis = "analysis"
)

// ErrAlreadyQueued is returned when the same subreddit analysis is pending
var ErrAlreadyQueued = errors.New("analysis already queued")

// AnalyzeSubredditPayload is the payload of one subreddit analysis task
type AnalyzeSubredditPayload struct {
	CampaignID   string `json:"campaign_id"`
	Subreddit    string `json:"subreddit"`
	ForceRefresh bool   `json:"force_refresh"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// TaskID returns the logical identity of the analysis. It is also the asynq
// task ID, so one campaign subreddit has at most one live task per queue.
func (p AnalyzeSubredditPayload) TaskID() string {
	return p.CampaignID + ":" + p.Subreddit
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
}

// RedisOpt returns the asynq connection options for cfg
func (cfg ClientConfig) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		client:    asynq.NewClient(cfg.RedisOpt()),
		inspector: asynq.NewInspector(cfg.RedisOpt()),
	}
}

// NewAnalyzeSubredditTask builds the task and its options. The trace context
// of ctx, if any, is carried in the payload.
func NewAnalyzeSubredditTask(ctx context.Context, campaignID, subreddit string, forceRefresh bool) (*asynq.Task, []asynq.Option, error) {
	payload := AnalyzeSubredditPayload{
		CampaignID:   campaignID,
		Subreddit:    subreddit,
		ForceRefresh: forceRefresh,
		EnqueuedAt:   time.Now().UnixNano(),
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", TypeAnalyzeSubreddit),
			attribute.String("task.id", payload.TaskID()),
			attribute.String("campaign.id", campaignID),
			attribute.String("subreddit", subreddit),
			attribute.Bool("force_refresh", forceRefresh),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	// No retention: completed tasks are deleted and free their ID
	opts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(10 * time.Minute),
		asynq.Queue(queueFor(forceRefresh)),
		asynq.TaskID(payload.TaskID()),
	}
	return asynq.NewTask(TypeAnalyzeSubreddit, payloadBytes), opts, nil
}

func queueFor(forceRefresh bool) string {
	if forceRefresh {
		return QueueRefresh
	}
	return QueueAnalysis
}

// EnqueueAnalyzeSubreddit enqueues one subreddit analysis. A pending,
// running or retrying task for the same subreddit yields ErrAlreadyQueued;
// an archived one is deleted and replaced.
func (c *Client) EnqueueAnalyzeSubreddit(ctx context.Context, campaignID, subreddit string, forceRefresh bool) (string, error) {
	task, opts, err := NewAnalyzeSubredditTask(ctx, campaignID, subreddit, forceRefresh)
	if err != nil {
		return "", err
	}

	id := AnalyzeSubredditPayload{CampaignID: campaignID, Subreddit: subreddit}.TaskID()
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) && c.clearArchived(queueFor(forceRefresh), id) {
		info, err = c.client.EnqueueContext(ctx, task, opts...)
	}
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return "", ErrAlreadyQueued
		}
		return "", fmt.Errorf("failed to enqueue subreddit analysis: %w", err)
	}

	return info.ID, nil
}

// clearArchived deletes the task with id when it is archived and reports
// whether it did
func (c *Client) clearArchived(queueName, id string) bool {
	info, err := c.inspector.GetTaskInfo(queueName, id)
	if err != nil || info.State != asynq.TaskStateArchived {
		return false
	}
	return c.inspector.DeleteTask(queueName, id) == nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}
