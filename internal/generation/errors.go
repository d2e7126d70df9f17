package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when a completion fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate completion")

	// ErrInvalidResponse is returned when the service response is missing or malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the service blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrInvalidConfig is returned when a client configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrEmptyPrompt is returned for a request without a prompt
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)

// RemoteError reports a remote call that did not succeed. Permanent is set
// when the call failed with a non-transient error and was not retried;
// otherwise the wrapper gave up after Attempts consecutive transient failures.
type RemoteError struct {
	Attempts  int
	Permanent bool
	Err       error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("remote call failed permanently on attempt %d: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("remote call failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last underlying error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is makes every RemoteError match ErrGenerationFailed.
func (e *RemoteError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientFailure)
}

// MarkTransient wraps err so that IsTransient reports true.
func MarkTransient(err error) error {
	if err == nil || IsTransient(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientFailure, err)
}

// StatusError converts a non-2xx HTTP status from a provider into an error.
// Rate limiting, request timeouts and server errors are transient.
func StatusError(code int, message string) error {
	switch {
	case code == http.StatusTooManyRequests,
		code == http.StatusRequestTimeout,
		code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d: %s", ErrTransientFailure, code, message)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrGenerationFailed, code, message)
	}
}

// ClassifyTransport marks network failures and per-call deadline expiry as
// transient. Other errors are returned unchanged.
func ClassifyTransport(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return MarkTransient(err)
	}
	return err
}
