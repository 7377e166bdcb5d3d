package queue

import (
	"context"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/communityanalyzer/internal/metrics"
)

func newTestWorker(t *testing.T, store Store) (*Worker, *metrics.BusinessMetrics) {
	t.Helper()
	m := metrics.NewBusinessMetrics("test", prometheus.NewRegistry())
	return &Worker{
		processor: NewProcessor(store, ProcessorConfig{Metrics: m}),
		logger:    slog.Default(),
		metrics:   m,
	}, m
}

func analyzeTask(t *testing.T, campaign, subreddit string) *asynq.Task {
	t.Helper()
	task, _, err := NewAnalyzeSubredditTask(context.Background(), campaign, subreddit, false)
	require.NoError(t, err)
	return task
}

func TestHandleAnalyzeSubreddit(t *testing.T) {
	db := setupTestDB(t)
	seedPosts(t, db, "camp", "gardening", 10)
	w, m := newTestWorker(t, db)

	require.NoError(t, w.handleAnalyzeSubreddit(context.Background(), analyzeTask(t, "camp", "gardening")))

	exists, err := db.ProfileExists(context.Background(), "camp", "gardening")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, testutil.CollectAndCount(m.QueueWait))

	// a second task without force_refresh leaves the profile alone
	require.NoError(t, w.handleAnalyzeSubreddit(context.Background(), analyzeTask(t, "camp", "gardening")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(metrics.StatusCompleted)))
}

func TestHandleAnalyzeSubredditInsufficientData(t *testing.T) {
	db := setupTestDB(t)
	seedPosts(t, db, "camp", "tiny", 3)
	w, _ := newTestWorker(t, db)

	err := w.handleAnalyzeSubreddit(context.Background(), analyzeTask(t, "camp", "tiny"))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleAnalyzeSubredditInvalidPayload(t *testing.T) {
	w, _ := newTestWorker(t, setupTestDB(t))

	err := w.handleAnalyzeSubreddit(context.Background(), asynq.NewTask(TypeAnalyzeSubreddit, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleAnalyzeSubredditRetriesStorageErrors(t *testing.T) {
	w, _ := newTestWorker(t, failingStore{setupTestDB(t)})

	err := w.handleAnalyzeSubreddit(context.Background(), analyzeTask(t, "camp", "gardening"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, ErrStorage)
}
