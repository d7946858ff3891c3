package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Kind classifies a failure so callers can decide whether it is retryable,
// reportable, or turn-ending without string matching.
type Kind string

const (
	KindValidation Kind = "validation" // malformed/dangerous command; never retried
	KindPolicy     Kind = "policy"     // blocked by whitelist/blocklist
	KindProvider   Kind = "provider"   // network/API failure; retried across the fallback chain
	KindRateLimit  Kind = "rate_limit" // per-turn call cap or circuit breaker
	KindBudget     Kind = "budget"     // session token ceiling reached
	KindHook       Kind = "hook"       // isolated hook failure
	KindTool       Kind = "tool"       // tool execution failure, normalized at the wrapper
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// WithKind tags an error with a Kind. Returns nil if err is nil.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// NewKind creates a new tagged error with file and line number information.
func NewKind(kind Kind, format string, a ...interface{}) error {
	return WithKind(kind, newAt(2, format, a...))
}

// KindOf returns the Kind of err, walking the wrap chain. Untagged errors
// report an empty Kind.
func KindOf(err error) Kind {
	var ke *kindError
	if stderrors.As(err, &ke) {
		return ke.kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	return newAt(2, format, a...)
}

func newAt(skip int, format string, a ...interface{}) error {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Errorf("[%s:%d] %s", file, line, fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Errorf("[%s:%d] %s: %w", file, line, fmt.Sprintf(format, a...), err)
}
