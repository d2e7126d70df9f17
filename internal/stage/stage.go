package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/qagen/internal/config"
	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/generation"
	"github.com/phrazzld/qagen/internal/identity"
	"github.com/phrazzld/qagen/internal/prompt"
)

var (
	// ErrMalformedResponse is returned when the model kept answering outside
	// the expected format for every attempt.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrIncompleteItem is returned when a work item lacks a parent record
	// the stage needs.
	ErrIncompleteItem = errors.New("work item is missing parent records")
)

// Stage processes claimed work items of one kind.
type Stage interface {
	Kind() domain.WorkKind
	Process(ctx context.Context, item domain.WorkItem) (domain.Outcome, error)
}

// Preparer is implemented by stages that resolve their author identities
// once, before the runner claims any item.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Options configures every stage.
type Options struct {
	Model    string
	Renderer prompt.Renderer
	Stop     []string
	Sampling generation.Sampling

	// MaxAttempts bounds how often a malformed response is re-requested.
	MaxAttempts            int
	NumQuestions           int
	AnswerMaxTokens        int
	AcceptPartialQuestions bool
}

// OptionsFromConfig builds stage options from the application configuration.
func OptionsFromConfig(llm config.LLMConfig, p config.PipelineConfig) Options {
	return Options{
		Model:                  llm.Model,
		Renderer:               prompt.Renderer{Prefix: llm.PromptPrefix, Suffix: llm.PromptSuffix},
		Stop:                   llm.Stop,
		Sampling:               generation.SamplingFromConfig(llm),
		MaxAttempts:            p.MaxAttempts,
		NumQuestions:           p.NumQuestions,
		AnswerMaxTokens:        p.AnswerMaxTokens,
		AcceptPartialQuestions: p.AcceptPartialQuestions,
	}
}

// New returns the stage for kind.
func New(
	kind domain.WorkKind,
	client generation.Client,
	resolver identity.Resolver,
	opts Options,
	logger *slog.Logger,
) (Stage, error) {
	switch kind {
	case domain.KindGenerateQuestions:
		return NewQuestionGenerator(client, resolver, opts, logger), nil
	case domain.KindFilterQuestions:
		return NewQuestionFilter(client, opts, logger), nil
	case domain.KindGenerateAnswers:
		return NewAnswerGenerator(client, resolver, opts, logger), nil
	case domain.KindGenerateRatings:
		return NewRatingGenerator(client, resolver, opts, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidWorkKind, kind)
	}
}

func prepareAuthors(ctx context.Context, resolver identity.Resolver, model string, tmpls ...prompt.Template) error {
	for _, tmpl := range tmpls {
		if _, err := resolver.Resolve(ctx, model, tmpl); err != nil {
			return fmt.Errorf("failed to resolve author for %s: %w", tmpl.Key(), err)
		}
	}
	return nil
}

// base carries what every stage needs to talk to the model.
type base struct {
	client generation.Client
	opts   Options
	logger *slog.Logger
}

func newBase(client generation.Client, opts Options, logger *slog.Logger, kind domain.WorkKind) base {
	if client == nil {
		panic("client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return base{
		client: client,
		opts:   opts,
		logger: logger.With(slog.String("component", "stage"), slog.String("work_kind", string(kind))),
	}
}

// call renders tmpl and sends it with the given sampling and choices.
func (b base) call(
	ctx context.Context,
	tmpl prompt.Template,
	vars prompt.Vars,
	sampling generation.Sampling,
	choices []string,
) (string, error) {
	text, err := b.opts.Renderer.Render(tmpl, vars)
	if err != nil {
		return "", err
	}
	resp, err := b.client.Complete(ctx, generation.Request{
		Model:    b.opts.Model,
		Prompt:   text,
		Stop:     b.opts.Stop,
		Sampling: sampling,
		Choices:  choices,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// retryMalformed re-issues a call until parse accepts the completion.
// Remote failures are returned at once: the remote call wrapper has already
// retried them.
func retryMalformed[T any](
	ctx context.Context,
	b base,
	what string,
	call func(ctx context.Context) (string, error),
	parse func(text string) (T, error),
) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= b.opts.MaxAttempts; attempt++ {
		text, err := call(ctx)
		if err != nil {
			return zero, err
		}
		v, err := parse(text)
		if err == nil {
			return v, nil
		}
		lastErr = err
		b.logger.Debug("malformed response",
			slog.String("expected", what),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}
	return zero, fmt.Errorf("%w: no valid %s after %d attempts: %v", ErrMalformedResponse, what, b.opts.MaxAttempts, lastErr)
}
