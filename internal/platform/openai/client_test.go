package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phrazzld/qagen/internal/config"
	"github.com/phrazzld/qagen/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.LLMConfig{BaseURL: srv.URL + "/v1/", APIKey: "secret"}, nil, testLogger())
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(config.LLMConfig{}, nil, testLogger())
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewClient(config.LLMConfig{BaseURL: "http://localhost"}, nil, nil)
	assert.Error(t, err)
}

func TestComplete_SendsRequest(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"NO"},"finish_reason":"stop"}]}`)
	})

	resp, err := c.Complete(context.Background(), generation.Request{
		Model:   "mistral-7b",
		Prompt:  "Is it valid?",
		Stop:    []string{"</s>"},
		Choices: []string{"YES", "NO"},
		Sampling: generation.Sampling{
			Temperature:       0.7,
			TopP:              0.7,
			TopK:              50,
			MaxTokens:         512,
			RepetitionPenalty: 1.1,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "NO", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)

	assert.Equal(t, "mistral-7b", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Is it valid?", got.Messages[0].Content)
	assert.Equal(t, []string{"YES", "NO"}, got.GuidedChoice)
	assert.Equal(t, []string{"</s>"}, got.Stop)
	assert.Equal(t, 50, got.TopK)
	assert.Equal(t, 512, got.MaxTokens)
	assert.False(t, got.Stream)
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
		errIs     error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true, generation.ErrTransientFailure},
		{"server error", http.StatusBadGateway, `upstream gone`, true, generation.ErrTransientFailure},
		{"bad request", http.StatusBadRequest, `{"object":"error","message":"bad model"}`, false, generation.ErrGenerationFailed},
		{"no choices", http.StatusOK, `{"choices":[]}`, false, generation.ErrInvalidResponse},
		{"garbage", http.StatusOK, `not json`, false, generation.ErrInvalidResponse},
		{"filtered", http.StatusOK, `{"choices":[{"message":{"content":""},"finish_reason":"content_filter"}]}`, false, generation.ErrContentBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Complete(context.Background(), generation.Request{Model: "m", Prompt: "p"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.errIs)
			assert.Equal(t, tt.transient, generation.IsTransient(err))
		})
	}
}

func TestComplete_ErrorMessageFromBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"object":"error","message":"max_tokens too large"}`)
	})

	_, err := c.Complete(context.Background(), generation.Request{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens too large")
	assert.Contains(t, err.Error(), "status 400")
}

func TestComplete_TimeoutIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, generation.Request{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, generation.IsTransient(err))
}
