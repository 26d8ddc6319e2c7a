// Package fault defines the engine error taxonomy. Configuration errors
// are fatal at load time; evaluation errors abort a single resolution;
// state errors are clamped or rejected with play continuing.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind int

const (
	// Config marks malformed or self-inconsistent authored content.
	Config Kind = iota
	// Eval marks a failed single resolution (e.g. division by zero).
	Eval
	// State marks a rejected or clamped runtime transition.
	State
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "configuration error"
	case Eval:
		return "evaluation error"
	case State:
		return "state error"
	}
	return "unknown error"
}

// Error carries the kind plus enough context to reproduce the failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Configf builds a configuration error.
func Configf(format string, args ...any) error {
	return &Error{Kind: Config, Msg: fmt.Sprintf(format, args...)}
}

// Evalf builds an evaluation error.
func Evalf(format string, args ...any) error {
	return &Error{Kind: Eval, Msg: fmt.Sprintf(format, args...)}
}

// Statef builds a state error.
func Statef(format string, args ...any) error {
	return &Error{Kind: State, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and context to an existing error.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is an engine error of the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
