package domain

import (
	"errors"
	"strings"
	"time"
)

// Setting is the context condition an answer was produced under.
type Setting string

// Possible answer settings
const (
	SettingZeroShot  Setting = "zs"
	SettingInContext Setting = "ic"
	SettingHuman     Setting = "human"
)

// MachineSettings lists the settings the answer stage must produce before a
// question counts as processed.
var MachineSettings = []Setting{SettingZeroShot, SettingInContext}

// Validation errors for Answer
var (
	ErrEmptyAnswerText = errors.New("answer text cannot be empty")
)

// Answer belongs to one question. Processed flips when its rating is written.
type Answer struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"question_id"`
	AuthorID   int64     `json:"author_id"`
	Setting    Setting   `json:"setting"`
	Text       string    `json:"text"`
	Processed  bool      `json:"processed"`
	Failures   int       `json:"failures"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAnswer creates an unrated answer.
func NewAnswer(questionID, authorID int64, setting Setting, text string) (*Answer, error) {
	a := &Answer{
		QuestionID: questionID,
		AuthorID:   authorID,
		Setting:    setting,
		Text:       strings.TrimSpace(text),
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the answer's fields.
func (a *Answer) Validate() error {
	if a.QuestionID <= 0 || a.AuthorID <= 0 {
		return ErrInvalidID
	}
	if !a.Setting.Valid() {
		return ErrInvalidSetting
	}
	if strings.TrimSpace(a.Text) == "" {
		return ErrEmptyAnswerText
	}
	return nil
}

// Valid reports whether s is a known setting.
func (s Setting) Valid() bool {
	switch s {
	case SettingZeroShot, SettingInContext, SettingHuman:
		return true
	default:
		return false
	}
}
