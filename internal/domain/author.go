package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// HumanModel is the model label used for identities of human contributors.
const HumanModel = "human"

// Validation errors for Author
var (
	ErrEmptyAuthorModel = errors.New("author model cannot be empty")
	ErrEmptyAuthorHash  = errors.New("author hash cannot be empty")
)

// Author identifies who produced a record: a (model, canonical prompt) pair for
// generated content, or a username for human contributions. Hash is the
// deduplication key and is unique in the store.
type Author struct {
	ID         int64     `json:"id"`
	Model      string    `json:"model"`
	TemplateID string    `json:"template_id,omitempty"`
	Prompt     string    `json:"prompt,omitempty"`
	Username   string    `json:"username,omitempty"`
	Hash       string    `json:"hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewModelAuthor builds the identity of a model driven by a canonical prompt.
// key is the versioned template key; prompt is the canonical template text.
func NewModelAuthor(model, key, prompt string) (*Author, error) {
	a := &Author{
		Model:      model,
		TemplateID: key,
		Prompt:     prompt,
		Hash:       AuthorHash(model, key+"\n"+prompt),
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewHumanAuthor builds the identity of a human contributor.
func NewHumanAuthor(username string) (*Author, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyContent
	}
	a := &Author{
		Model:     HumanModel,
		Username:  username,
		Hash:      AuthorHash(HumanModel, "user:"+username),
		CreatedAt: time.Now().UTC(),
	}
	return a, nil
}

// Validate checks the author's fields.
func (a *Author) Validate() error {
	if strings.TrimSpace(a.Model) == "" {
		return ErrEmptyAuthorModel
	}
	if a.Hash == "" {
		return ErrEmptyAuthorHash
	}
	return nil
}

// AuthorHash returns the hex sha256 of "model:key".
func AuthorHash(model, key string) string {
	sum := sha256.Sum256([]byte(model + ":" + key))
	return hex.EncodeToString(sum[:])
}
