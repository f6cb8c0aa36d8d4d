// Package errkind classifies pipeline errors so callers can distinguish
// "no data available" from "malformed input" from "external service failure"
// and decide whether to proceed with partial data or abort.
package errkind

import (
	"errors"
	"io/fs"
	"net"
	"strings"
	"syscall"
)

// Kind is the coarse classification of a pipeline error.
type Kind string

const (
	// NoData means the requested input does not exist or is empty.
	NoData Kind = "no_data"
	// MalformedInput means the input exists but could not be decoded or
	// failed validation.
	MalformedInput Kind = "malformed_input"
	// ExternalService means a store or other external dependency failed.
	ExternalService Kind = "external_service"
	// Internal is everything else.
	Internal Kind = "internal"
)

// Error wraps an error with a Kind. It participates in errors.Is/As chains.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind. Returns nil if err is nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Classify returns the Kind of err, walking the wrap chain. Untagged errors
// classify as Internal, except filesystem not-exist errors (NoData) and
// network errors (ExternalService).
func Classify(err error) Kind {
	if err == nil {
		return Internal
	}

	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}

	if errors.Is(err, fs.ErrNotExist) {
		return NoData
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ExternalService
	}

	return Internal
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return Classify(err) == kind
}

// IsTransient returns true if the error is safe to retry: connection-level
// failures, timeouts, and database availability problems.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"database is locked",
		"too many connections",
		"connection refused",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
