package domain

import (
	"fmt"
)

// WorkKind identifies one of the four pipeline stages and, by extension, the
// kind of item that stage claims.
type WorkKind string

// Pipeline stages
const (
	KindGenerateQuestions WorkKind = "generate_questions"
	KindFilterQuestions   WorkKind = "filter_questions"
	KindGenerateAnswers   WorkKind = "generate_answers"
	KindGenerateRatings   WorkKind = "generate_ratings"
)

// StageOrder is the order in which stages must run.
var StageOrder = []WorkKind{
	KindGenerateQuestions,
	KindFilterQuestions,
	KindGenerateAnswers,
	KindGenerateRatings,
}

// Valid reports whether k is a known stage.
func (k WorkKind) Valid() bool {
	switch k {
	case KindGenerateQuestions, KindFilterQuestions, KindGenerateAnswers, KindGenerateRatings:
		return true
	default:
		return false
	}
}

// ParseWorkKind converts a stage name into a WorkKind.
func ParseWorkKind(s string) (WorkKind, error) {
	k := WorkKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidWorkKind, s)
	}
	return k, nil
}

// WorkItem is one claimed unit of work along with the ancestor records a
// stage needs to build its prompts.
//
//   - generate_questions: Paragraph
//   - filter_questions, generate_answers: Paragraph, Question
//   - generate_ratings: Paragraph, Question, Answer
type WorkItem struct {
	Kind      WorkKind
	ID        int64
	Paragraph *Paragraph
	Question  *Question
	Answer    *Answer
}

// FilterVerdict is the filter stage's decision for one question.
type FilterVerdict struct {
	AnswerableIC bool
	AnswerableZS bool
}

// Rejected reports whether the question fails either check.
func (v FilterVerdict) Rejected() bool {
	return !(v.AnswerableIC && v.AnswerableZS)
}

// Outcome is what a stage produced for one item. Exactly the fields matching
// Kind are populated; the parent's transition is implied by Kind.
type Outcome struct {
	Kind      WorkKind
	ItemID    int64
	Questions []*Question
	Answers   []*Answer
	Rating    *Rating
	Verdict   *FilterVerdict
}

// Validate checks that the outcome carries the children its kind requires.
func (o *Outcome) Validate() error {
	if o.ItemID <= 0 {
		return ErrInvalidID
	}
	switch o.Kind {
	case KindGenerateQuestions:
		if len(o.Questions) == 0 {
			return fmt.Errorf("%w: no questions for paragraph %d", ErrInvalidTransition, o.ItemID)
		}
		for _, q := range o.Questions {
			if q.ParagraphID != o.ItemID {
				return fmt.Errorf("%w: question belongs to paragraph %d, not %d",
					ErrInvalidTransition, q.ParagraphID, o.ItemID)
			}
			if err := q.Validate(); err != nil {
				return err
			}
		}
	case KindFilterQuestions:
		if o.Verdict == nil {
			return fmt.Errorf("%w: missing filter verdict for question %d", ErrInvalidTransition, o.ItemID)
		}
	case KindGenerateAnswers:
		seen := make(map[Setting]bool, len(o.Answers))
		for _, a := range o.Answers {
			if a.QuestionID != o.ItemID {
				return fmt.Errorf("%w: answer belongs to question %d, not %d",
					ErrInvalidTransition, a.QuestionID, o.ItemID)
			}
			if err := a.Validate(); err != nil {
				return err
			}
			seen[a.Setting] = true
		}
		for _, s := range MachineSettings {
			if !seen[s] {
				return fmt.Errorf("%w: missing %s answer for question %d", ErrInvalidTransition, s, o.ItemID)
			}
		}
	case KindGenerateRatings:
		if o.Rating == nil {
			return fmt.Errorf("%w: missing rating for answer %d", ErrInvalidTransition, o.ItemID)
		}
		if o.Rating.AnswerID != o.ItemID {
			return fmt.Errorf("%w: rating belongs to answer %d, not %d",
				ErrInvalidTransition, o.Rating.AnswerID, o.ItemID)
		}
		return o.Rating.Validate()
	default:
		return ErrInvalidWorkKind
	}
	return nil
}
