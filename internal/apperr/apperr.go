// Package apperr defines Iron Insights' error taxonomy (spec.md §7) as a
// small typed-error type, generalizing the sentinel-error style the
// teacher package uses for its store errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the taxonomy buckets from spec.md §7.
type Kind int

const (
	// Internal is the zero value so an unclassified error still maps to 500.
	Internal Kind = iota
	BadRequest
	DataUnavailable
	EngineUnavailable
	Overloaded
	// SchemaMismatchKind and CorruptKind are load-time-only members of the
	// taxonomy (spec.md §4.1); they are always fatal at startup and never
	// surfaced per-request, so they carry no dedicated HTTP status.
	SchemaMismatchKind
	CorruptKind
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "bad_request"
	case DataUnavailable:
		return "data_unavailable"
	case EngineUnavailable:
		return "engine_unavailable"
	case Overloaded:
		return "overloaded"
	case SchemaMismatchKind:
		return "schema_mismatch"
	case CorruptKind:
		return "corrupt"
	default:
		return "internal"
	}
}

// SchemaMismatch reports a dataset file missing or mistyping a required
// column (spec.md §4.1).
func SchemaMismatch() Kind { return SchemaMismatchKind }

// Corrupt reports a dataset file that fails to decode (spec.md §4.1).
func Corrupt() Kind { return CorruptKind }

// Status returns the HTTP status code the taxonomy assigns this kind.
func (k Kind) Status() int {
	switch k {
	case BadRequest:
		return http.StatusBadRequest
	case DataUnavailable:
		return http.StatusOK // never raised per-request; loader falls back
	case EngineUnavailable:
		return http.StatusServiceUnavailable
	case Overloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error wraps an underlying cause with a taxonomy Kind and a user-facing
// reason string.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap constructs an Error of the given kind around a lower-level cause.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf classifies err into a taxonomy Kind, defaulting to Internal for
// errors that were never explicitly classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
