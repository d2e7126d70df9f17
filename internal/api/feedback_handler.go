package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/qagen/internal/api/shared"
	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
)

// FeedbackRecorder is the write side used by FeedbackHandler.
type FeedbackRecorder interface {
	SubmitAnswer(ctx context.Context, questionID int64, username, text string) (*domain.Answer, error)
	SubmitRating(ctx context.Context, answerID int64, username string, value int, rationale string) (*domain.Rating, error)
	Vote(ctx context.Context, questionID int64, up bool) error
}

// FeedbackHandler handles human answers, ratings and votes.
type FeedbackHandler struct {
	feedback FeedbackRecorder
	logger   *slog.Logger
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(feedback FeedbackRecorder, logger *slog.Logger) *FeedbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackHandler{
		feedback: feedback,
		logger:   logger.With(slog.String("component", "feedback_handler")),
	}
}

// SubmitAnswer handles POST /api/questions/{id}/answers.
func (h *FeedbackHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	questionID, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req SubmitAnswerRequest
	if !h.decode(w, r, &req) {
		return
	}

	answer, err := h.feedback.SubmitAnswer(r.Context(), questionID, req.Username, req.Text)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit answer")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, answerToResponse(answer))
}

// SubmitRating handles POST /api/answers/{id}/ratings.
func (h *FeedbackHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	answerID, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req SubmitRatingRequest
	if !h.decode(w, r, &req) {
		return
	}

	rating, err := h.feedback.SubmitRating(r.Context(), answerID, req.Username, *req.Value, req.Rationale)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit rating")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, ratingToResponse(rating))
}

// Vote handles POST /api/questions/{id}/votes.
func (h *FeedbackHandler) Vote(w http.ResponseWriter, r *http.Request) {
	questionID, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req VoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.feedback.Vote(r.Context(), questionID, req.Direction == "up"); err != nil {
		HandleAPIError(w, r, err, "Failed to record vote")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode parses and validates the request body, writing a 400 response and
// returning false on failure.
func (h *FeedbackHandler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := shared.DecodeJSON(w, r, req); err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Debug("invalid request body",
			slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return false
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return false
	}
	return true
}
