package stage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/generation"
	"github.com/phrazzld/qagen/internal/identity"
	"github.com/phrazzld/qagen/internal/prompt"
)

// RatingGenerator scores an answer from 0 to 5 against the source fact.
type RatingGenerator struct {
	base
	resolver identity.Resolver
}

var (
	_ Stage    = (*RatingGenerator)(nil)
	_ Preparer = (*RatingGenerator)(nil)
)

// NewRatingGenerator creates the generate_ratings stage.
func NewRatingGenerator(
	client generation.Client,
	resolver identity.Resolver,
	opts Options,
	logger *slog.Logger,
) *RatingGenerator {
	if resolver == nil {
		panic("resolver cannot be nil")
	}
	return &RatingGenerator{
		base:     newBase(client, opts, logger, domain.KindGenerateRatings),
		resolver: resolver,
	}
}

// Prepare implements Preparer.
func (s *RatingGenerator) Prepare(ctx context.Context) error {
	return prepareAuthors(ctx, s.resolver, s.opts.Model, prompt.RateAnswer)
}

// Kind implements Stage.
func (s *RatingGenerator) Kind() domain.WorkKind {
	return domain.KindGenerateRatings
}

type parsedRating struct {
	score     int
	rationale string
}

// Process implements Stage.
func (s *RatingGenerator) Process(ctx context.Context, item domain.WorkItem) (domain.Outcome, error) {
	a, q, p := item.Answer, item.Question, item.Paragraph
	if a == nil || q == nil || p == nil {
		return domain.Outcome{}, fmt.Errorf("%w: answer %d", ErrIncompleteItem, item.ID)
	}

	authorID, err := s.resolver.Resolve(ctx, s.opts.Model, prompt.RateAnswer)
	if err != nil {
		return domain.Outcome{}, err
	}

	_, fact := Fact(p)
	vars := prompt.Vars{
		prompt.FieldReference: fact,
		prompt.FieldQuestion:  q.Text,
		prompt.FieldAnswer:    a.Text,
	}

	parsed, err := retryMalformed(ctx, s.base, "rating",
		func(ctx context.Context) (string, error) {
			return s.call(ctx, prompt.RateAnswer, vars, s.opts.Sampling, nil)
		},
		func(text string) (parsedRating, error) {
			score, rationale, err := ParseRating(text)
			return parsedRating{score: score, rationale: rationale}, err
		})
	if err != nil {
		return domain.Outcome{}, err
	}

	rating, err := domain.NewRating(a.ID, authorID, parsed.score, parsed.rationale)
	if err != nil {
		return domain.Outcome{}, err
	}

	return domain.Outcome{
		Kind:   domain.KindGenerateRatings,
		ItemID: a.ID,
		Rating: rating,
	}, nil
}
