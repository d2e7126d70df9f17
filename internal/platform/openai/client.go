package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/qagen/internal/config"
	"github.com/phrazzld/qagen/internal/generation"
	"github.com/phrazzld/qagen/internal/platform/logger"
)

const completionsPath = "/chat/completions"

// maxErrorBody caps how much of an error response is kept in the error message.
const maxErrorBody = 512

// Client implements generation.Client for OpenAI-compatible servers.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

var _ generation.Client = (*Client)(nil)

// NewClient creates a client for the server at cfg.BaseURL, e.g.
// "http://localhost:8000/v1". The per-call timeout is enforced by the
// retrying wrapper, so httpClient may be nil.
func NewClient(cfg config.LLMConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL cannot be empty", generation.ErrInvalidConfig)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  logger.With(slog.String("component", "openai_client")),
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model             string    `json:"model"`
	Messages          []message `json:"messages"`
	MaxTokens         int       `json:"max_tokens,omitempty"`
	Temperature       float32   `json:"temperature"`
	TopP              float32   `json:"top_p,omitempty"`
	TopK              int       `json:"top_k,omitempty"`
	RepetitionPenalty float32   `json:"repetition_penalty,omitempty"`
	Stop              []string  `json:"stop,omitempty"`
	Stream            bool      `json:"stream"`
	GuidedChoice      []string  `json:"guided_choice,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// Complete implements generation.Client.
func (c *Client) Complete(ctx context.Context, req generation.Request) (*generation.Response, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", generation.ErrInvalidConfig, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("openai: %w", generation.ClassifyTransport(err))
		log.Debug("openai call failed",
			slog.String("model", req.Model),
			slog.Bool("transient", generation.IsTransient(err)),
			slog.String("error", err.Error()))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("openai: %w", generation.StatusError(resp.StatusCode, readErrorMessage(resp.Body)))
		log.Debug("openai call rejected",
			slog.String("model", req.Model),
			slog.Int("status", resp.StatusCode),
			slog.Bool("transient", generation.IsTransient(err)))
		return nil, err
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", generation.ErrInvalidResponse, err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", generation.ErrInvalidResponse)
	}

	choice := result.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, fmt.Errorf("%w: finish reason %s", generation.ErrContentBlocked, choice.FinishReason)
	}
	return &generation.Response{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
	}, nil
}

func buildRequest(req generation.Request) chatRequest {
	s := req.Sampling
	return chatRequest{
		Model:             req.Model,
		Messages:          []message{{Role: "user", Content: req.Prompt}},
		MaxTokens:         s.MaxTokens,
		Temperature:       s.Temperature,
		TopP:              s.TopP,
		TopK:              s.TopK,
		RepetitionPenalty: s.RepetitionPenalty,
		Stop:              req.Stop,
		GuidedChoice:      req.Choices,
	}
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "unreadable error body"
	}
	var parsed errorResponse
	if json.Unmarshal(data, &parsed) == nil {
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(data))
}
