// Package apperr classifies failures so callers can decide whether to stop,
// log and continue, or retry.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an Error.
type Kind string

const (
	// Config errors are fatal at startup.
	Config Kind = "config"
	// Storage errors are logged; the caller proceeds with defaults.
	Storage Kind = "storage"
	// External errors come from the feed source or a summarizer.
	External Kind = "external"
	// Transport errors come from the chat transport.
	Transport Kind = "transport"
	// Unknown is reported for errors that were never classified.
	Unknown Kind = "unknown"
)

// Error wraps an underlying error with its kind and the failing operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
