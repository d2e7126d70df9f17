package domain

import (
	"errors"
	"strings"
	"time"
)

// Validation errors for Paragraph
var (
	ErrEmptyParagraphPage = errors.New("paragraph page name cannot be empty")
	ErrEmptyParagraphText = errors.New("paragraph text cannot be empty")
)

// Paragraph is a unit of source text together with its position in the
// article hierarchy. Processed flips once, when its questions are written.
type Paragraph struct {
	ID                int64     `json:"id"`
	PageName          string    `json:"page_name"`
	SectionName       string    `json:"section_name"`
	SubsectionName    string    `json:"subsection_name,omitempty"`
	SubsubsectionName string    `json:"subsubsection_name,omitempty"`
	Text              string    `json:"text"`
	TextCleaned       string    `json:"text_cleaned"`
	WordCount         int       `json:"word_count"`
	IsBad             bool      `json:"is_bad"`
	WithinPageOrder   int       `json:"within_page_order"`
	Processed         bool      `json:"processed"`
	Failures          int       `json:"failures"`
	CreatedAt         time.Time `json:"created_at"`
}

// Validate checks the fields required before a paragraph is stored.
func (p *Paragraph) Validate() error {
	if strings.TrimSpace(p.PageName) == "" {
		return ErrEmptyParagraphPage
	}
	if strings.TrimSpace(p.Text) == "" && strings.TrimSpace(p.TextCleaned) == "" {
		return ErrEmptyParagraphText
	}
	return nil
}

// Body returns the cleaned text, falling back to the raw text when the
// cleaned column was left empty by the loader.
func (p *Paragraph) Body() string {
	if p.TextCleaned != "" {
		return p.TextCleaned
	}
	return p.Text
}
