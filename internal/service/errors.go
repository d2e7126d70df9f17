package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/store"
)

// Sentinel errors returned by the services. The API layer maps them to
// status codes.
var (
	// ErrQuestionNotFound indicates the question a submission targets does not exist.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrAnswerNotFound indicates the answer a rating targets does not exist.
	ErrAnswerNotFound = errors.New("answer not found")

	// ErrAlreadySubmitted indicates the contributor already answered the
	// question or already rated the answer.
	ErrAlreadySubmitted = errors.New("feedback already submitted")

	// ErrInvalidInput indicates a submission failed domain validation.
	ErrInvalidInput = errors.New("invalid input")
)

// ServiceError wraps unexpected failures with the service and operation that
// produced them.
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s operation failed: %v", e.Service, e.Op, e.Err)
	}
	return fmt.Sprintf("%s service %s operation failed", e.Service, e.Op)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// wrapError returns known sentinel errors directly and wraps everything else
// in a ServiceError. Store and domain errors are translated to the service's
// own sentinels first.
func wrapError(service, op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrAnswerNotFound),
		errors.Is(err, ErrAlreadySubmitted),
		errors.Is(err, ErrInvalidInput):
		return err
	case errors.Is(err, store.ErrQuestionNotFound):
		return ErrQuestionNotFound
	case errors.Is(err, store.ErrAnswerNotFound):
		return ErrAnswerNotFound
	case errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrEmptyAnswerText),
		errors.Is(err, domain.ErrInvalidRatingValue),
		errors.Is(err, domain.ErrInvalidID):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &ServiceError{Service: service, Op: op, Err: err}
}

func errNilDependency(name string) error {
	return fmt.Errorf("%s cannot be nil", name)
}
