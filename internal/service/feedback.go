package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/identity"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/store"
)

// FeedbackService records human contributions. Human answers are stored
// unprocessed so the rating stage scores them like machine answers; human
// ratings are stored next to machine ratings and leave the answer's
// processed flag alone.
type FeedbackService struct {
	db        *sql.DB
	questions store.QuestionStore
	answers   store.AnswerStore
	ratings   store.RatingStore
	resolver  identity.Resolver
	logger    *slog.Logger
}

// NewFeedbackService creates a FeedbackService. It returns an error if any
// dependency is nil.
func NewFeedbackService(
	db *sql.DB,
	questions store.QuestionStore,
	answers store.AnswerStore,
	ratings store.RatingStore,
	resolver identity.Resolver,
	logger *slog.Logger,
) (*FeedbackService, error) {
	deps := []struct {
		name string
		nil  bool
	}{
		{"db", db == nil},
		{"questions", questions == nil},
		{"answers", answers == nil},
		{"ratings", ratings == nil},
		{"resolver", resolver == nil},
	}
	for _, d := range deps {
		if d.nil {
			return nil, &ServiceError{Service: "feedback", Op: "create_service", Err: errNilDependency(d.name)}
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackService{
		db:        db,
		questions: questions,
		answers:   answers,
		ratings:   ratings,
		resolver:  resolver,
		logger:    logger.With(slog.String("component", "feedback_service")),
	}, nil
}

// SubmitAnswer stores a human answer to a question. Each contributor may
// answer a question once.
func (s *FeedbackService) SubmitAnswer(
	ctx context.Context,
	questionID int64,
	username, text string,
) (*domain.Answer, error) {
	const op = "submit_answer"
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.Int64("question_id", questionID),
		slog.String("username", username))

	if err := checkContributor(username, text); err != nil {
		return nil, err
	}
	if _, err := s.questions.GetByID(ctx, questionID); err != nil {
		return nil, wrapError("feedback", op, err)
	}

	authorID, err := s.resolver.ResolveHuman(ctx, username)
	if err != nil {
		log.Error("failed to resolve contributor", slog.String("error", err.Error()))
		return nil, wrapError("feedback", op, err)
	}

	answer, err := domain.NewAnswer(questionID, authorID, domain.SettingHuman, text)
	if err != nil {
		return nil, wrapError("feedback", op, err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		answers := s.answers.WithTx(tx)
		exists, err := answers.ExistsForAuthor(ctx, questionID, authorID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadySubmitted
		}
		return answers.Create(ctx, answer)
	})
	if err != nil {
		return nil, wrapError("feedback", op, err)
	}

	log.Info("human answer recorded", slog.Int64("answer_id", answer.ID))
	return answer, nil
}

// SubmitRating stores a human rating of an answer. Each contributor may rate
// an answer once.
func (s *FeedbackService) SubmitRating(
	ctx context.Context,
	answerID int64,
	username string,
	value int,
	rationale string,
) (*domain.Rating, error) {
	const op = "submit_rating"
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.Int64("answer_id", answerID),
		slog.String("username", username))

	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if value < domain.MinRating || value > domain.MaxRating {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, domain.ErrInvalidRatingValue)
	}
	if _, err := s.answers.GetByID(ctx, answerID); err != nil {
		return nil, wrapError("feedback", op, err)
	}

	authorID, err := s.resolver.ResolveHuman(ctx, username)
	if err != nil {
		log.Error("failed to resolve contributor", slog.String("error", err.Error()))
		return nil, wrapError("feedback", op, err)
	}

	rating, err := domain.NewRating(answerID, authorID, value, strings.TrimSpace(rationale))
	if err != nil {
		return nil, wrapError("feedback", op, err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		ratings := s.ratings.WithTx(tx)
		exists, err := ratings.ExistsForAuthor(ctx, answerID, authorID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadySubmitted
		}
		return ratings.Create(ctx, rating)
	})
	if err != nil {
		return nil, wrapError("feedback", op, err)
	}

	log.Info("human rating recorded", slog.Int64("rating_id", rating.ID), slog.Int("value", value))
	return rating, nil
}

// Vote records an up or down vote on a question.
func (s *FeedbackService) Vote(ctx context.Context, questionID int64, up bool) error {
	if err := s.questions.Vote(ctx, questionID, up); err != nil {
		return wrapError("feedback", "vote", err)
	}
	return nil
}

func checkContributor(username, text string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: %v", ErrInvalidInput, domain.ErrEmptyAnswerText)
	}
	return nil
}
