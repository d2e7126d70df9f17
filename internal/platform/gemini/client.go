package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/qagen/internal/config"
	"github.com/phrazzld/qagen/internal/generation"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"google.golang.org/genai"
)

// enumMIMEType makes the service return exactly one enum value as plain text.
const enumMIMEType = "text/x.enum"

// Client implements generation.Client using the Gemini API.
type Client struct {
	client *genai.Client
	logger *slog.Logger
}

// Ensure Client implements generation.Client
var _ generation.Client = (*Client)(nil)

// NewClient creates a Gemini client from the LLM configuration. BaseURL,
// when set, overrides the public endpoint.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &Client{
		client: client,
		logger: logger.With(slog.String("component", "gemini_client")),
	}, nil
}

func validateConfig(cfg config.LLMConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	return nil
}

// Complete implements generation.Client.
func (c *Client) Complete(ctx context.Context, req generation.Request) (*generation.Response, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), buildConfig(req))
	if err != nil {
		err = classifyError(err)
		log.Debug("gemini call failed",
			slog.String("model", req.Model),
			slog.Bool("transient", generation.IsTransient(err)),
			slog.String("error", err.Error()))
		return nil, err
	}

	return parseResponse(resp)
}

func buildConfig(req generation.Request) *genai.GenerateContentConfig {
	s := req.Sampling
	cfg := &genai.GenerateContentConfig{
		StopSequences: req.Stop,
	}
	if s.Temperature > 0 {
		cfg.Temperature = genai.Ptr(s.Temperature)
	}
	if s.TopP > 0 {
		cfg.TopP = genai.Ptr(s.TopP)
	}
	if s.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(s.TopK))
	}
	if s.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(s.MaxTokens)
	}
	if len(req.Choices) > 0 {
		cfg.ResponseMIMEType = enumMIMEType
		cfg.ResponseSchema = &genai.Schema{
			Type: genai.TypeString,
			Enum: req.Choices,
		}
	}
	return cfg
}

func parseResponse(resp *genai.GenerateContentResponse) (*generation.Response, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked: %s", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	return &generation.Response{
		Text:         resp.Text(),
		FinishReason: string(candidate.FinishReason),
	}, nil
}

// classifyError maps genai errors onto the generation taxonomy.
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("gemini: %w", generation.StatusError(apiErr.Code, apiErr.Message))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fmt.Errorf("gemini: %w", generation.StatusError(apiErrPtr.Code, apiErrPtr.Message))
	}
	return fmt.Errorf("gemini: %w", generation.ClassifyTransport(err))
}
