package service

import (
	"errors"
	"testing"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestServiceError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ServiceError
		expected string
	}{
		{
			name:     "with underlying error",
			err:      &ServiceError{Service: "feedback", Op: "submit_answer", Err: errors.New("connection reset")},
			expected: "feedback service submit_answer operation failed: connection reset",
		},
		{
			name:     "without underlying error",
			err:      &ServiceError{Service: "progress", Op: "get_stats"},
			expected: "progress service get_stats operation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"store question not found", store.ErrQuestionNotFound, ErrQuestionNotFound},
		{"store answer not found", store.ErrAnswerNotFound, ErrAnswerNotFound},
		{"already submitted passes through", ErrAlreadySubmitted, ErrAlreadySubmitted},
		{"rating out of range", domain.ErrInvalidRatingValue, ErrInvalidInput},
		{"empty answer", domain.ErrEmptyAnswerText, ErrInvalidInput},
		{"unexpected error keeps cause", cause, cause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapError("feedback", "op", tt.err)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	t.Run("unexpected errors are wrapped", func(t *testing.T) {
		var se *ServiceError
		assert.ErrorAs(t, wrapError("feedback", "vote", cause), &se)
		assert.Equal(t, "vote", se.Op)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, wrapError("feedback", "vote", nil))
	})
}
