package generation

import (
	"context"
	"strings"

	"github.com/phrazzld/qagen/internal/config"
)

// Client completes a prompt using a remote generation service.
type Client interface {
	// Complete returns the service's completion for req.
	// Transient failures wrap ErrTransientFailure.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Sampling holds the decoding parameters of a request. Zero values leave the
// provider default in place.
type Sampling struct {
	Temperature       float32
	TopP              float32
	TopK              int
	MaxTokens         int
	RepetitionPenalty float32
}

// Request is one completion request.
type Request struct {
	Model    string
	Prompt   string
	Stop     []string
	Sampling Sampling

	// Choices, when set, constrains the completion to exactly one of the
	// listed strings.
	Choices []string
}

// Validate checks that the request can be sent.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// Response is a completed generation.
type Response struct {
	Text         string
	FinishReason string
}

// SamplingFromConfig returns the configured sampling defaults.
func SamplingFromConfig(cfg config.LLMConfig) Sampling {
	return Sampling{
		Temperature:       cfg.Temperature,
		TopP:              cfg.TopP,
		TopK:              cfg.TopK,
		MaxTokens:         cfg.MaxTokens,
		RepetitionPenalty: cfg.RepetitionPenalty,
	}
}
