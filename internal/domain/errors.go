package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is missing or not positive.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidSetting is returned when an answer setting is not one of zs, ic or human.
	ErrInvalidSetting = errors.New("invalid answer setting")

	// ErrInvalidRatingValue is returned when a rating is outside [0,5].
	ErrInvalidRatingValue = errors.New("rating value must be between 0 and 5")

	// ErrInvalidWorkKind is returned for an unknown stage/work kind.
	ErrInvalidWorkKind = errors.New("invalid work kind")

	// ErrInvalidTransition is returned when a status change would violate
	// the one-way flag rules (for example processing an unfiltered question).
	ErrInvalidTransition = errors.New("invalid status transition")
)
