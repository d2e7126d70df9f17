package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/qagen/internal/api"
	apiMiddleware "github.com/phrazzld/qagen/internal/api/middleware"
)

// setupRouter creates the admin API router from the application services.
func (app *application) setupRouter() http.Handler {
	return newRouter(
		app.logger,
		api.NewHealthHandler(app.db, app.logger),
		api.NewProgressHandler(app.progressService, app.logger),
		api.NewFeedbackHandler(app.feedbackService, app.logger),
	)
}

// newRouter registers the middleware chain and every admin API route.
func newRouter(
	logger *slog.Logger,
	health *api.HealthHandler,
	progress *api.ProgressHandler,
	feedback *api.FeedbackHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(logger))

	r.Get("/health", health.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/progress", progress.GetProgress)
		r.Get("/stats", progress.GetStats)
		r.Get("/samples", progress.GetSamples)

		r.Post("/questions/{id}/answers", feedback.SubmitAnswer)
		r.Post("/questions/{id}/votes", feedback.Vote)
		r.Post("/answers/{id}/ratings", feedback.SubmitRating)
	})

	return r
}
