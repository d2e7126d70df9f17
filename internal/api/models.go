package api

import (
	"time"

	"github.com/phrazzld/qagen/internal/domain"
)

// SubmitAnswerRequest is the payload of POST /api/questions/{id}/answers.
type SubmitAnswerRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Text     string `json:"text"     validate:"required,max=10000"`
}

// SubmitRatingRequest is the payload of POST /api/answers/{id}/ratings.
// Value is a pointer so that a zero score is distinguishable from a missing one.
type SubmitRatingRequest struct {
	Username  string `json:"username"  validate:"required,max=100"`
	Value     *int   `json:"value"     validate:"required,min=0,max=5"`
	Rationale string `json:"rationale" validate:"max=10000"`
}

// VoteRequest is the payload of POST /api/questions/{id}/votes.
type VoteRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// Rating states reported for a stored answer.
const (
	RatingPending = "pending"
	RatingDone    = "rated"
)

// AnswerResponse describes a stored answer. Human answers are not rated on
// submission: RatingStatus stays "pending" until the generate_ratings stage
// has scored the answer.
type AnswerResponse struct {
	ID           int64     `json:"id"`
	QuestionID   int64     `json:"question_id"`
	AuthorID     int64     `json:"author_id"`
	Setting      string    `json:"setting"`
	Text         string    `json:"text"`
	RatingStatus string    `json:"rating_status"`
	CreatedAt    time.Time `json:"created_at"`
}

// RatingResponse describes a stored rating.
type RatingResponse struct {
	ID        int64     `json:"id"`
	AnswerID  int64     `json:"answer_id"`
	AuthorID  int64     `json:"author_id"`
	Value     int       `json:"value"`
	Rationale string    `json:"rationale"`
	CreatedAt time.Time `json:"created_at"`
}

// SamplesResponse wraps the random samples endpoint.
type SamplesResponse struct {
	Count   int               `json:"count"`
	Samples []domain.QASample `json:"samples"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func answerToResponse(a *domain.Answer) AnswerResponse {
	status := RatingPending
	if a.Processed {
		status = RatingDone
	}
	return AnswerResponse{
		ID:           a.ID,
		QuestionID:   a.QuestionID,
		AuthorID:     a.AuthorID,
		Setting:      string(a.Setting),
		Text:         a.Text,
		RatingStatus: status,
		CreatedAt:    a.CreatedAt,
	}
}

func ratingToResponse(r *domain.Rating) RatingResponse {
	return RatingResponse{
		ID:        r.ID,
		AnswerID:  r.AnswerID,
		AuthorID:  r.AuthorID,
		Value:     r.Value,
		Rationale: r.Text,
		CreatedAt: r.CreatedAt,
	}
}
