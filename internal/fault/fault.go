// Package fault defines the error kinds shared across mixdesk.
//
// Callers classify failures with errors.Is against the sentinels below.
// A timeout always matches ErrUnavailable as well, so code that falls back
// on an unavailable collaborator handles timeouts without a second check.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrInput covers malformed, empty or undecodable buffers and unknown stem ids.
	ErrInput = errors.New("invalid input")

	// ErrUnavailable means an external collaborator is absent or unreachable.
	ErrUnavailable = errors.New("collaborator unavailable")

	// ErrTimeout means a blocking collaborator call exceeded its deadline.
	ErrTimeout = errors.New("collaborator timed out")

	// ErrParse means a collaborator answered with output we could not read.
	ErrParse = errors.New("unparseable collaborator output")
)

// Input returns an ErrInput with a formatted message.
func Input(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

// Unavailable wraps cause as ErrUnavailable, naming the collaborator.
func Unavailable(collaborator string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", collaborator, ErrUnavailable)
	}
	return fmt.Errorf("%s: %w: %w", collaborator, ErrUnavailable, cause)
}

// Timeout wraps cause as both ErrTimeout and ErrUnavailable.
func Timeout(collaborator string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w (%w)", collaborator, ErrTimeout, ErrUnavailable)
	}
	return fmt.Errorf("%s: %w (%w): %w", collaborator, ErrTimeout, ErrUnavailable, cause)
}

// Parse wraps cause as ErrParse.
func Parse(what string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", what, ErrParse)
	}
	return fmt.Errorf("%s: %w: %w", what, ErrParse, cause)
}

// Degrades reports whether err should send a measurement down its fallback path.
func Degrades(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrParse)
}
