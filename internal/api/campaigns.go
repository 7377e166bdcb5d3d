package api

import (
	"errors"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/communityanalyzer/internal/analyzer"
	"github.com/zombar/communityanalyzer/internal/models"
	"github.com/zombar/communityanalyzer/internal/patterns"
	"github.com/zombar/communityanalyzer/internal/queue"
	"github.com/zombar/communityanalyzer/internal/scoring"
	"github.com/zombar/communityanalyzer/internal/tracing"
)

// Per-subreddit statuses reported by the analyze endpoint
const (
	statusQueued        = "queued"
	statusAlreadyQueued = "already_queued"
	statusCompleted     = "completed"
	statusUpToDate      = "up_to_date"
	statusSkipped       = "skipped"
	statusFailed        = "failed"
)

type savePostsRequest struct {
	Posts []models.Post `json:"posts"`
}

// handleSavePosts ingests collected posts for a campaign
func (h *Handler) handleSavePosts(w http.ResponseWriter, r *http.Request) {
	campaignID := r.PathValue("campaign")

	var req savePostsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Posts) == 0 {
		respondError(w, "posts field is required", http.StatusBadRequest)
		return
	}

	for i := range req.Posts {
		req.Posts[i].CampaignID = campaignID
		req.Posts[i].Subreddit = strings.TrimSpace(req.Posts[i].Subreddit)
		if req.Posts[i].Subreddit == "" {
			respondError(w, "every post needs a subreddit", http.StatusBadRequest)
			return
		}
	}

	if err := h.db.SavePosts(r.Context(), req.Posts); err != nil {
		h.fail(w, r, "Failed to save posts", err)
		return
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.String("campaign.id", campaignID),
		attribute.Int("posts.count", len(req.Posts)))

	respondJSON(w, map[string]interface{}{
		"saved":      len(req.Posts),
		"subreddits": analyzer.Subreddits(analyzer.GroupBySubreddit(req.Posts)),
	}, http.StatusCreated)
}

// handleListPosts lists a campaign's posts, optionally for one subreddit
func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.db.ListPosts(r.Context(), r.PathValue("campaign"), r.URL.Query().Get("subreddit"))
	if err != nil {
		h.fail(w, r, "Failed to list posts", err)
		return
	}
	respondJSON(w, map[string]interface{}{
		"posts": posts,
		"total": len(posts),
	}, http.StatusOK)
}

type analyzeRequest struct {
	ForceRefresh bool     `json:"force_refresh"`
	Subreddits   []string `json:"subreddits,omitempty"`
}

type subredditResult struct {
	Subreddit string                   `json:"subreddit"`
	Status    string                   `json:"status"`
	TaskID    string                   `json:"task_id,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Profile   *models.CommunityProfile `json:"profile,omitempty"`
}

// handleAnalyze queues one analysis per subreddit, or runs them inline when
// no queue is configured
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	campaignID := r.PathValue("campaign")

	var req analyzeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	subreddits, err := h.targetSubreddits(r, campaignID, req.Subreddits)
	if err != nil {
		h.fail(w, r, "Failed to list posts", err)
		return
	}
	if len(subreddits) == 0 {
		respondError(w, "campaign has no posts to analyze", http.StatusNotFound)
		return
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.String("campaign.id", campaignID),
		attribute.Int("subreddits.count", len(subreddits)),
		attribute.Bool("force_refresh", req.ForceRefresh))

	if h.queueClient != nil {
		h.enqueueAnalyses(w, r, campaignID, subreddits, req.ForceRefresh)
		return
	}
	h.runAnalyses(w, r, campaignID, subreddits, req.ForceRefresh)
}

// targetSubreddits returns the requested subreddits, or every subreddit
// with stored posts
func (h *Handler) targetSubreddits(r *http.Request, campaignID string, requested []string) ([]string, error) {
	if len(requested) > 0 {
		seen := make(map[string]bool, len(requested))
		out := make([]string, 0, len(requested))
		for _, s := range requested {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
		sort.Strings(out)
		return out, nil
	}

	posts, err := h.db.ListPosts(r.Context(), campaignID, "")
	if err != nil {
		return nil, err
	}
	return analyzer.Subreddits(analyzer.GroupBySubreddit(posts)), nil
}

func (h *Handler) enqueueAnalyses(w http.ResponseWriter, r *http.Request, campaignID string, subreddits []string, force bool) {
	ctx := r.Context()
	results := make([]subredditResult, 0, len(subreddits))

	for _, subreddit := range subreddits {
		res := subredditResult{Subreddit: subreddit, Status: statusQueued}
		taskID, err := h.queueClient.EnqueueAnalyzeSubreddit(ctx, campaignID, subreddit, force)
		switch {
		case errors.Is(err, queue.ErrAlreadyQueued):
			res.Status = statusAlreadyQueued
		case err != nil:
			h.fail(w, r, "Failed to enqueue analysis", err)
			return
		default:
			res.TaskID = taskID
			run := &models.AnalysisRun{CampaignID: campaignID, Subreddit: subreddit, Status: models.RunPending}
			if err := h.db.SaveRun(ctx, run); err != nil {
				h.logger.Warn("failed to record pending run", "campaign_id", campaignID, "subreddit", subreddit, "error", err)
			}
		}
		results = append(results, res)
	}

	respondJSON(w, map[string]interface{}{
		"campaign_id": campaignID,
		"status":      "started",
		"subreddits":  results,
	}, http.StatusAccepted)
}

// runAnalyses analyzes each subreddit in the request. When nothing could be
// analyzed because every subreddit lacked posts the reply is 422.
func (h *Handler) runAnalyses(w http.ResponseWriter, r *http.Request, campaignID string, subreddits []string, force bool) {
	results := make([]subredditResult, 0, len(subreddits))
	skipped := 0

	for _, subreddit := range subreddits {
		res := subredditResult{Subreddit: subreddit}
		outcome, err := h.processor.Process(r.Context(), campaignID, subreddit, force)

		var insufficient *scoring.InsufficientDataError
		switch {
		case errors.As(err, &insufficient):
			res.Status = statusSkipped
			res.Error = err.Error()
			skipped++
		case err != nil:
			res.Status = statusFailed
			res.Error = err.Error()
			h.logger.Error("subreddit analysis failed", "campaign_id", campaignID, "subreddit", subreddit, "error", err)
		case outcome.UpToDate:
			res.Status = statusUpToDate
			res.Profile = outcome.Profile
		default:
			res.Status = statusCompleted
			res.Profile = outcome.Profile
		}
		results = append(results, res)
	}

	status := http.StatusOK
	if skipped == len(subreddits) {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, map[string]interface{}{
		"campaign_id": campaignID,
		"status":      "finished",
		"subreddits":  results,
	}, status)
}

// handleListRuns reports the state of each subreddit analysis
func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.db.ListRuns(r.Context(), r.PathValue("campaign"))
	if err != nil {
		h.fail(w, r, "Failed to list runs", err)
		return
	}
	respondJSON(w, map[string]interface{}{"runs": runs}, http.StatusOK)
}

// handleListProfiles lists every profile of a campaign
func (h *Handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.db.ListProfiles(r.Context(), r.PathValue("campaign"))
	if err != nil {
		h.fail(w, r, "Failed to list profiles", err)
		return
	}
	respondJSON(w, map[string]interface{}{
		"profiles": profiles,
		"total":    len(profiles),
	}, http.StatusOK)
}

// handleGetProfile returns one subreddit profile
func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.db.GetProfile(r.Context(), r.PathValue("campaign"), r.PathValue("subreddit"))
	if err != nil {
		h.fail(w, r, "Profile not found", err)
		return
	}
	respondJSON(w, profile, http.StatusOK)
}

// handleProfilePatterns returns the forbidden pattern summary of a profile
func (h *Handler) handleProfilePatterns(w http.ResponseWriter, r *http.Request) {
	profile, err := h.db.GetProfile(r.Context(), r.PathValue("campaign"), r.PathValue("subreddit"))
	if err != nil {
		h.fail(w, r, "Profile not found", err)
		return
	}
	respondJSON(w, profile.ForbiddenPatterns, http.StatusOK)
}

// handleListCustomPatterns lists user-added patterns
func (h *Handler) handleListCustomPatterns(w http.ResponseWriter, r *http.Request) {
	stored, err := h.db.ListCustomPatterns(r.Context(), r.PathValue("campaign"), r.URL.Query().Get("subreddit"))
	if err != nil {
		h.fail(w, r, "Failed to list patterns", err)
		return
	}
	respondJSON(w, map[string]interface{}{
		"patterns": stored,
		"total":    len(stored),
	}, http.StatusOK)
}

type addPatternRequest struct {
	Subreddit string `json:"subreddit,omitempty"`
	Category  string `json:"category,omitempty"`
	Pattern   string `json:"pattern"`
}

// handleAddCustomPattern stores a user-added forbidden pattern
func (h *Handler) handleAddCustomPattern(w http.ResponseWriter, r *http.Request) {
	var req addPatternRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	expr := strings.TrimSpace(req.Pattern)
	if expr == "" {
		respondError(w, "pattern field is required", http.StatusBadRequest)
		return
	}
	if _, err := regexp.Compile("(?i)" + expr); err != nil {
		respondError(w, "Invalid pattern: "+err.Error(), http.StatusBadRequest)
		return
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = patterns.CustomCategory
	}

	p := &models.StoredPattern{
		CampaignID: r.PathValue("campaign"),
		Subreddit:  strings.TrimSpace(req.Subreddit),
		Category:   category,
		Pattern:    expr,
	}
	if err := h.db.AddCustomPattern(r.Context(), p); err != nil {
		h.fail(w, r, "Failed to save pattern", err)
		return
	}
	respondJSON(w, p, http.StatusCreated)
}

// handleDeleteCustomPattern removes a user-added pattern
func (h *Handler) handleDeleteCustomPattern(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteCustomPattern(r.Context(), r.PathValue("campaign"), r.PathValue("id")); err != nil {
		h.fail(w, r, "Pattern not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePostScore returns the score breakdown of an analyzed post
func (h *Handler) handlePostScore(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	post, err := h.db.GetPost(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Post not found", err)
		return
	}
	score, err := h.db.GetPostScore(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Post has not been analyzed", err)
		return
	}

	respondJSON(w, analyzer.ScoreBreakdown(*post, *score, h.processor.Analyzer().Detector()), http.StatusOK)
}
