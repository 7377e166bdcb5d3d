package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/zombar/communityanalyzer/internal/database"
	"github.com/zombar/communityanalyzer/internal/metrics"
	"github.com/zombar/communityanalyzer/internal/queue"
	"github.com/zombar/communityanalyzer/pkg/logging"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 10 << 20

// Enqueuer schedules subreddit analyses
type Enqueuer interface {
	EnqueueAnalyzeSubreddit(ctx context.Context, campaignID, subreddit string, forceRefresh bool) (string, error)
}

// Options are the optional collaborators of the handler
type Options struct {
	// Queue runs analyses asynchronously; without it they run in the request
	Queue    Enqueuer
	Metrics  *metrics.BusinessMetrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Handler handles HTTP requests
type Handler struct {
	db          *database.DB
	processor   *queue.Processor
	queueClient Enqueuer
	metrics     *metrics.BusinessMetrics
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	mux         *http.ServeMux
}

// NewHandler creates the API handler with CORS support
func NewHandler(db *database.DB, processor *queue.Processor, opts Options) http.Handler {
	h := newHandler(db, processor, opts)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(h.mux)
}

func newHandler(db *database.DB, processor *queue.Processor, opts Options) *Handler {
	h := &Handler{
		db:          db,
		processor:   processor,
		queueClient: opts.Queue,
		metrics:     opts.Metrics,
		gatherer:    opts.Gatherer,
		logger:      opts.Logger,
		mux:         http.NewServeMux(),
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.gatherer == nil {
		h.gatherer = prometheus.DefaultGatherer
	}
	h.setupRoutes()
	return h
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	h.mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	h.mux.HandleFunc("GET /health", h.handleHealth)

	h.mux.HandleFunc("POST /api/campaigns/{campaign}/posts", h.handleSavePosts)
	h.mux.HandleFunc("GET /api/campaigns/{campaign}/posts", h.handleListPosts)
	h.mux.HandleFunc("POST /api/campaigns/{campaign}/analyze", h.handleAnalyze)
	h.mux.HandleFunc("GET /api/campaigns/{campaign}/runs", h.handleListRuns)
	h.mux.HandleFunc("GET /api/campaigns/{campaign}/profiles", h.handleListProfiles)
	h.mux.HandleFunc("GET /api/campaigns/{campaign}/profiles/{subreddit}", h.handleGetProfile)
	h.mux.HandleFunc("GET /api/campaigns/{campaign}/profiles/{subreddit}/patterns", h.handleProfilePatterns)
	h.mux.HandleFunc("GET /api/campaigns/{campaign}/forbidden-patterns", h.handleListCustomPatterns)
	h.mux.HandleFunc("POST /api/campaigns/{campaign}/forbidden-patterns", h.handleAddCustomPattern)
	h.mux.HandleFunc("DELETE /api/campaigns/{campaign}/forbidden-patterns/{id}", h.handleDeleteCustomPattern)
	h.mux.HandleFunc("GET /api/posts/{id}/score", h.handlePostScore)
	h.mux.HandleFunc("POST /api/validate", h.handleValidate)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}
	if err := h.db.Conn().PingContext(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = err.Error()
	}
	respondJSON(w, body, status)
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps storage errors to HTTP status codes
func statusFor(err error) int {
	if errors.Is(err, database.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// fail logs server errors and replies with the mapped status
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.HTTPErrorLogger(h.logger, status, err, r)
	}
	respondError(w, message, status)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
