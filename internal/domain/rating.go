package domain

import "time"

// Rating bounds
const (
	MinRating = 0
	MaxRating = 5
)

// Rating is the terminal record of the pipeline: a score and a rationale for
// one answer.
type Rating struct {
	ID        int64     `json:"id"`
	AnswerID  int64     `json:"answer_id"`
	AuthorID  int64     `json:"author_id"`
	Value     int       `json:"value"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRating creates a rating after validating the score range.
func NewRating(answerID, authorID int64, value int, rationale string) (*Rating, error) {
	r := &Rating{
		AnswerID:  answerID,
		AuthorID:  authorID,
		Value:     value,
		Text:      rationale,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the rating's fields.
func (r *Rating) Validate() error {
	if r.AnswerID <= 0 || r.AuthorID <= 0 {
		return ErrInvalidID
	}
	if r.Value < MinRating || r.Value > MaxRating {
		return ErrInvalidRatingValue
	}
	return nil
}
