package stage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/generation"
	"github.com/phrazzld/qagen/internal/identity"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/prompt"
)

// QuestionGenerator asks for NumQuestions questions about a paragraph.
type QuestionGenerator struct {
	base
	resolver identity.Resolver
}

var (
	_ Stage    = (*QuestionGenerator)(nil)
	_ Preparer = (*QuestionGenerator)(nil)
)

// NewQuestionGenerator creates the generate_questions stage.
func NewQuestionGenerator(
	client generation.Client,
	resolver identity.Resolver,
	opts Options,
	logger *slog.Logger,
) *QuestionGenerator {
	if resolver == nil {
		panic("resolver cannot be nil")
	}
	if opts.NumQuestions < 1 {
		opts.NumQuestions = 1
	}
	return &QuestionGenerator{
		base:     newBase(client, opts, logger, domain.KindGenerateQuestions),
		resolver: resolver,
	}
}

// Prepare implements Preparer.
func (s *QuestionGenerator) Prepare(ctx context.Context) error {
	return prepareAuthors(ctx, s.resolver, s.opts.Model, prompt.GenerateQuestions)
}

// Kind implements Stage.
func (s *QuestionGenerator) Kind() domain.WorkKind {
	return domain.KindGenerateQuestions
}

// Process implements Stage. The whole list is regenerated while it holds
// fewer than NumQuestions questions.
func (s *QuestionGenerator) Process(ctx context.Context, item domain.WorkItem) (domain.Outcome, error) {
	p := item.Paragraph
	if p == nil {
		return domain.Outcome{}, fmt.Errorf("%w: paragraph %d", ErrIncompleteItem, item.ID)
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	authorID, err := s.resolver.Resolve(ctx, s.opts.Model, prompt.GenerateQuestions)
	if err != nil {
		return domain.Outcome{}, err
	}

	qctx, fact := Fact(p)
	vars := prompt.Vars{
		prompt.FieldNumQuestions: s.opts.NumQuestions,
		prompt.FieldParagraph:    fact,
	}
	want := s.opts.NumQuestions

	var best []string
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		text, err := s.call(ctx, prompt.GenerateQuestions, vars, s.opts.Sampling, nil)
		if err != nil {
			return domain.Outcome{}, err
		}
		parsed := ParseQuestions(text, want)
		if len(parsed) > len(best) {
			best = parsed
		}
		if len(best) >= want {
			break
		}
		log.Debug("too few questions in response",
			slog.Int64("item_id", p.ID),
			slog.Int("attempt", attempt),
			slog.Int("parsed", len(parsed)),
			slog.Int("wanted", want))
	}

	if len(best) < want && !(s.opts.AcceptPartialQuestions && len(best) > 0) {
		return domain.Outcome{}, fmt.Errorf("%w: got %d of %d questions after %d attempts",
			ErrMalformedResponse, len(best), want, s.opts.MaxAttempts)
	}

	questions := make([]*domain.Question, 0, len(best))
	for _, text := range best {
		q, err := domain.NewQuestion(p.ID, authorID, qctx, text)
		if err != nil {
			return domain.Outcome{}, err
		}
		questions = append(questions, q)
	}

	return domain.Outcome{
		Kind:      domain.KindGenerateQuestions,
		ItemID:    p.ID,
		Questions: questions,
	}, nil
}
