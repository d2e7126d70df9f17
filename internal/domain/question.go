package domain

import (
	"errors"
	"strings"
	"time"
)

// Question scope and turn labels carried over from the dataset format.
const (
	ScopeSingleParagraph = "single-paragraph"
	TurnsSingle          = "single"
)

// Validation errors for Question
var (
	ErrEmptyQuestionText = errors.New("question text cannot be empty")
)

// Question is generated from exactly one paragraph.
//
// Filtered records that the filter stage ran, Rejected that it found the
// question unanswerable, and Processed that both answers were written.
// Processed implies Filtered and not Rejected.
type Question struct {
	ID           int64     `json:"id"`
	ParagraphID  int64     `json:"paragraph_id"`
	AuthorID     int64     `json:"author_id"`
	Scope        string    `json:"scope"`
	Context      string    `json:"context"`
	Text         string    `json:"text"`
	Turns        string    `json:"turns"`
	Upvote       int       `json:"upvote"`
	Downvote     int       `json:"downvote"`
	Filtered     bool      `json:"filtered"`
	Rejected     bool      `json:"rejected"`
	AnswerableIC *bool     `json:"is_answerable_ic,omitempty"`
	AnswerableZS *bool     `json:"is_answerable_zs,omitempty"`
	Processed    bool      `json:"processed"`
	Failures     int       `json:"failures"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewQuestion creates an unfiltered question for the given paragraph.
func NewQuestion(paragraphID, authorID int64, context, text string) (*Question, error) {
	q := &Question{
		ParagraphID: paragraphID,
		AuthorID:    authorID,
		Scope:       ScopeSingleParagraph,
		Context:     context,
		Text:        strings.TrimSpace(text),
		Turns:       TurnsSingle,
		CreatedAt:   time.Now().UTC(),
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// Validate checks the question's fields and its flag invariant.
func (q *Question) Validate() error {
	if q.ParagraphID <= 0 || q.AuthorID <= 0 {
		return ErrInvalidID
	}
	if strings.TrimSpace(q.Text) == "" {
		return ErrEmptyQuestionText
	}
	if q.Processed && (!q.Filtered || q.Rejected) {
		return ErrInvalidTransition
	}
	return nil
}
