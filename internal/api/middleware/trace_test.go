package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/qagen/internal/api/shared"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/stretchr/testify/assert"
)

func TestTraceMiddleware(t *testing.T) {
	base := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("generates a trace id and logger", func(t *testing.T) {
		var traceID string
		var hasLogger bool
		h := NewTraceMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID = shared.GetTraceID(r.Context())
			hasLogger = logger.FromContext(r.Context()) != slog.Default()
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.NotEmpty(t, traceID)
		assert.True(t, hasLogger)
	})

	t.Run("reuses the chi request id", func(t *testing.T) {
		var traceID, reqID string
		h := chimw.RequestID(NewTraceMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID = shared.GetTraceID(r.Context())
			reqID = chimw.GetReqID(r.Context())
		})))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.NotEmpty(t, reqID)
		assert.Equal(t, reqID, traceID)
	})
}
