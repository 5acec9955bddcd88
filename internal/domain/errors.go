package domain

import "errors"

var (
	// ErrNotFound signals a missing order or queue item.
	ErrNotFound = errors.New("not found")
	// ErrInvalidParameters signals order parameters that fail the service's
	// required-field validation. Never retried.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrInvalidTransition signals an attempted move outside the lifecycle
	// graph. The order is left untouched.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrTransient classifies retry-worthy step failures (timeouts, rate
	// limits, network errors).
	ErrTransient = errors.New("transient failure")
	// ErrPermanent classifies step failures that must not be retried.
	ErrPermanent = errors.New("permanent failure")
	// ErrStorage signals an unavailable persistence store. Fatal to the
	// worker loop, never silently swallowed.
	ErrStorage = errors.New("storage unavailable")
)
