// Package errors provides typed error handling for the noop tracer.
//
// It defines the error taxonomy of the tool's error handling design: every
// failure surfaced to the user carries a Kind so the CLI layer can decide
// how to react (print usage, just print a message, or propagate a tracer
// exit code). All errors support the standard errors.Is()/errors.As().
package errors

import (
	"errors"
	"fmt"
)

// Kind represents the category of an error.
type Kind int

const (
	// KindArg indicates a command-line argument or policy-syntax error.
	KindArg Kind = iota
	// KindParse indicates a UTF-8 decode failure reading a tracee path.
	KindParse
	// KindOS indicates a failure in the debug interface, fork, exec, or wait.
	KindOS
	// KindSeccomp indicates a seccomp filter init/add/load failure.
	KindSeccomp
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindArg:
		return "usage error"
	case KindParse:
		return "parse error"
	case KindOS:
		return "os error"
	case KindSeccomp:
		return "seccomp error"
	default:
		return "unknown error"
	}
}

// TraceError is an error raised anywhere in the tracer, tagged with a Kind.
type TraceError struct {
	// Op is the operation that failed (e.g. "parse policy", "ptrace attach").
	Op string
	// Err is the underlying error, if any.
	Err error
	// Kind classifies the error.
	Kind Kind
	// Detail provides additional human-readable context.
	Detail string
}

// Error returns the error message.
func (e *TraceError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var msg string
	if e.Op != "" {
		msg = fmt.Sprintf("%s: ", e.Op)
	}
	if e.Detail != "" {
		msg += e.Detail
	} else {
		msg += e.Kind.String()
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *TraceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether the error matches the target.
// It matches if the target is a *TraceError with the same Kind.
func (e *TraceError) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if t, ok := target.(*TraceError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates a new TraceError with the given kind.
func New(kind Kind, op string, detail string) *TraceError {
	return &TraceError{Op: op, Kind: kind, Detail: detail}
}

// Wrap wraps an error with a kind and operation.
func Wrap(err error, kind Kind, op string) *TraceError {
	return &TraceError{Op: op, Err: err, Kind: kind}
}

// WrapWithDetail wraps an error with additional detail.
func WrapWithDetail(err error, kind Kind, op string, detail string) *TraceError {
	return &TraceError{Op: op, Err: err, Kind: kind, Detail: detail}
}

// IsKind checks if an error is of a specific kind.
func IsKind(err error, kind Kind) bool {
	var terr *TraceError
	if errors.As(err, &terr) {
		return terr.Kind == kind
	}
	return false
}

// GetKind returns the error kind if the error is a TraceError.
func GetKind(err error) (Kind, bool) {
	var terr *TraceError
	if errors.As(err, &terr) {
		return terr.Kind, true
	}
	return 0, false
}

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)
