package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/qagen/internal/api/shared"
	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/service"
)

// ProgressReader is the read side used by ProgressHandler.
type ProgressReader interface {
	Progress(ctx context.Context) (*service.Progress, error)
	Stats(ctx context.Context) (*domain.DatasetStats, error)
	Samples(ctx context.Context, n int) ([]domain.QASample, error)
}

// ProgressHandler serves pipeline progress, dataset statistics and samples.
type ProgressHandler struct {
	progress ProgressReader
	logger   *slog.Logger
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(progress ProgressReader, logger *slog.Logger) *ProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressHandler{
		progress: progress,
		logger:   logger.With(slog.String("component", "progress_handler")),
	}
}

// GetProgress handles GET /api/progress.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.progress.Progress(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load progress")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, p)
}

// GetStats handles GET /api/stats.
func (h *ProgressHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.progress.Stats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load statistics")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, st)
}

// GetSamples handles GET /api/samples?n=.
func (h *ProgressHandler) GetSamples(w http.ResponseWriter, r *http.Request) {
	n, err := getQueryInt(r, "n", service.DefaultSampleSize)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid sample size")
		return
	}

	samples, err := h.progress.Samples(r.Context(), n)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load samples")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, SamplesResponse{Count: len(samples), Samples: samples})
}
