package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/generation"
	"github.com/phrazzld/qagen/internal/prompt"
	"golang.org/x/sync/errgroup"
)

// QuestionFilter checks each question twice: once against its source fact and
// once on its own. A question failing either check is rejected.
type QuestionFilter struct {
	base
}

var _ Stage = (*QuestionFilter)(nil)

// NewQuestionFilter creates the filter_questions stage.
func NewQuestionFilter(client generation.Client, opts Options, logger *slog.Logger) *QuestionFilter {
	return &QuestionFilter{base: newBase(client, opts, logger, domain.KindFilterQuestions)}
}

// Kind implements Stage.
func (s *QuestionFilter) Kind() domain.WorkKind {
	return domain.KindFilterQuestions
}

// Process implements Stage.
func (s *QuestionFilter) Process(ctx context.Context, item domain.WorkItem) (domain.Outcome, error) {
	q, p := item.Question, item.Paragraph
	if q == nil || p == nil {
		return domain.Outcome{}, fmt.Errorf("%w: question %d", ErrIncompleteItem, item.ID)
	}

	verdict := domain.FilterVerdict{}
	if strings.TrimSpace(q.Text) != "" {
		_, fact := Fact(p)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			ok, err := s.ask(gctx, prompt.FilterInContext, prompt.Vars{
				prompt.FieldQuestion: q.Text,
				prompt.FieldFact:     fact,
			})
			verdict.AnswerableIC = ok
			return err
		})
		g.Go(func() error {
			ok, err := s.ask(gctx, prompt.FilterZeroShot, prompt.Vars{
				prompt.FieldQuestion: q.Text,
			})
			verdict.AnswerableZS = ok
			return err
		})
		if err := g.Wait(); err != nil {
			return domain.Outcome{}, err
		}
	}

	return domain.Outcome{
		Kind:    domain.KindFilterQuestions,
		ItemID:  q.ID,
		Verdict: &verdict,
	}, nil
}

func (s *QuestionFilter) ask(ctx context.Context, tmpl prompt.Template, vars prompt.Vars) (bool, error) {
	return retryMalformed(ctx, s.base, "YES/NO verdict",
		func(ctx context.Context) (string, error) {
			return s.call(ctx, tmpl, vars, s.opts.Sampling, prompt.FilterChoices)
		},
		parseChoice)
}
