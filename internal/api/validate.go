package api

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/communityanalyzer/internal/patterns"
	"github.com/zombar/communityanalyzer/internal/tracing"
	"github.com/zombar/communityanalyzer/internal/validator"
)

type validateRequest struct {
	Draft      string   `json:"draft"`
	CampaignID string   `json:"campaign_id,omitempty"`
	Subreddit  string   `json:"subreddit,omitempty"`
	Forbidden  []string `json:"forbidden,omitempty"`
}

// handleValidate checks a draft against forbidden patterns. Patterns stored
// for the campaign (and subreddit) are added to the ones in the request.
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Draft) == "" {
		respondError(w, "draft field is required", http.StatusBadRequest)
		return
	}

	forbidden := append([]string(nil), req.Forbidden...)
	if req.CampaignID != "" {
		stored, err := h.db.ListCustomPatterns(r.Context(), req.CampaignID, req.Subreddit)
		if err != nil {
			h.fail(w, r, "Failed to load patterns", err)
			return
		}
		for _, sp := range stored {
			forbidden = append(forbidden, patterns.CustomPattern{Category: sp.Category, Expr: sp.Pattern}.Encode())
		}
	}

	result := validator.ValidateDraft(req.Draft, forbidden)
	if h.metrics != nil {
		h.metrics.RecordValidation(result.Passed)
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.Int("draft.length", len(req.Draft)),
		attribute.Int("forbidden.count", len(forbidden)),
		attribute.Bool("draft.passed", result.Passed))

	respondJSON(w, result, http.StatusOK)
}
