package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/generation"
	"github.com/phrazzld/qagen/internal/identity"
	"github.com/phrazzld/qagen/internal/prompt"
	"golang.org/x/sync/errgroup"
)

// AnswerGenerator answers each question twice, with and without its source
// fact.
type AnswerGenerator struct {
	base
	resolver identity.Resolver
}

var (
	_ Stage    = (*AnswerGenerator)(nil)
	_ Preparer = (*AnswerGenerator)(nil)
)

// NewAnswerGenerator creates the generate_answers stage.
func NewAnswerGenerator(
	client generation.Client,
	resolver identity.Resolver,
	opts Options,
	logger *slog.Logger,
) *AnswerGenerator {
	if resolver == nil {
		panic("resolver cannot be nil")
	}
	return &AnswerGenerator{
		base:     newBase(client, opts, logger, domain.KindGenerateAnswers),
		resolver: resolver,
	}
}

// Prepare implements Preparer.
func (s *AnswerGenerator) Prepare(ctx context.Context) error {
	return prepareAuthors(ctx, s.resolver, s.opts.Model, prompt.AnswerZeroShot, prompt.AnswerInContext)
}

// Kind implements Stage.
func (s *AnswerGenerator) Kind() domain.WorkKind {
	return domain.KindGenerateAnswers
}

// Process implements Stage.
func (s *AnswerGenerator) Process(ctx context.Context, item domain.WorkItem) (domain.Outcome, error) {
	q, p := item.Question, item.Paragraph
	if q == nil || p == nil {
		return domain.Outcome{}, fmt.Errorf("%w: question %d", ErrIncompleteItem, item.ID)
	}
	_, fact := Fact(p)

	settings := []struct {
		setting domain.Setting
		tmpl    prompt.Template
		vars    prompt.Vars
	}{
		{domain.SettingZeroShot, prompt.AnswerZeroShot, prompt.Vars{
			prompt.FieldQuestion: q.Text,
		}},
		{domain.SettingInContext, prompt.AnswerInContext, prompt.Vars{
			prompt.FieldFact:     fact,
			prompt.FieldQuestion: q.Text,
		}},
	}

	answers := make([]*domain.Answer, len(settings))
	g, gctx := errgroup.WithContext(ctx)
	for i, st := range settings {
		g.Go(func() error {
			authorID, err := s.resolver.Resolve(gctx, s.opts.Model, st.tmpl)
			if err != nil {
				return err
			}
			text, err := s.answer(gctx, st.tmpl, st.vars)
			if err != nil {
				return err
			}
			a, err := domain.NewAnswer(q.ID, authorID, st.setting, text)
			if err != nil {
				return err
			}
			answers[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Outcome{}, err
	}

	return domain.Outcome{
		Kind:    domain.KindGenerateAnswers,
		ItemID:  q.ID,
		Answers: answers,
	}, nil
}

func (s *AnswerGenerator) answer(ctx context.Context, tmpl prompt.Template, vars prompt.Vars) (string, error) {
	sampling := s.opts.Sampling
	if s.opts.AnswerMaxTokens > 0 {
		sampling.MaxTokens = s.opts.AnswerMaxTokens
	}
	return retryMalformed(ctx, s.base, "answer",
		func(ctx context.Context) (string, error) {
			return s.call(ctx, tmpl, vars, sampling, nil)
		},
		func(text string) (string, error) {
			text = strings.TrimSpace(text)
			if text == "" {
				return "", errors.New("empty answer")
			}
			return text, nil
		})
}
