package clue

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clueboard/server/internal/judge"
	httperrors "github.com/clueboard/server/pkg/http/errors"
)

// HTTPHandlers exposes the round and answer endpoints.
type HTTPHandlers struct {
	service *Service
	logger  zerolog.Logger
}

func NewHTTPHandlers(service *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		logger:  logger.With().Str("component", "clue_http").Logger(),
	}
}

// Root handles GET /.
func (h *HTTPHandlers) Root(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Hello, World!"})
}

// GetRound handles GET /round/{roundValue}?category=.
func (h *HTTPHandlers) GetRound(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.Atoi(r.PathValue("roundValue"))
	if err != nil {
		httperrors.RespondBadRequest(w, "Round value must be 1 (Single Jeopardy) or 2 (Double Jeopardy)")
		return
	}
	category := r.URL.Query().Get("category")

	board, err := h.service.AssembleRound(r.Context(), round, category)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRound):
			httperrors.RespondBadRequest(w, "Round value must be 1 (Single Jeopardy) or 2 (Double Jeopardy)")
		case errors.Is(err, ErrCategoryNotFound):
			httperrors.RespondNotFound(w, fmt.Sprintf("Category '%s' not found", category))
		case errors.Is(err, ErrNoCategories):
			httperrors.RespondNotFound(w, "No categories found for this round")
		default:
			h.logger.Error().Err(err).
				Str("code", httperrors.ErrCodeInternalError).
				Int("round", round).
				Msg("round assembly failed")
			httperrors.RespondInternalError(w)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, board)
}

// AnswerRequest is the POST /answer payload.
type AnswerRequest struct {
	ClueID     int64  `json:"clue_id"`
	UserAnswer string `json:"user_answer"`
}

// SubmitAnswer handles POST /answer.
func (h *HTTPHandlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, "Invalid request body")
		return
	}
	if req.ClueID == 0 {
		httperrors.RespondBadRequest(w, "clue_id is required")
		return
	}
	if strings.TrimSpace(req.UserAnswer) == "" {
		httperrors.RespondBadRequest(w, "user_answer is required")
		return
	}

	result, err := h.service.SubmitAnswer(r.Context(), req.ClueID, req.UserAnswer)
	if err != nil {
		switch {
		case errors.Is(err, ErrClueNotFound):
			httperrors.RespondNotFound(w, "Clue not found")
		case errors.Is(err, judge.ErrUnavailable), errors.Is(err, judge.ErrMalformedOutput):
			// Never leak judge internals (or the stored answer) to the client.
			h.logger.Error().Err(err).
				Str("code", httperrors.ErrCodeUpstreamJudge).
				Int64("clue_id", req.ClueID).
				Msg("answer judgment failed upstream")
			httperrors.RespondInternalError(w)
		default:
			h.logger.Error().Err(err).
				Str("code", httperrors.ErrCodeInternalError).
				Int64("clue_id", req.ClueID).
				Msg("answer submission failed")
			httperrors.RespondInternalError(w)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}
