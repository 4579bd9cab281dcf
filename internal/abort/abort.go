// Package abort classifies run-terminating failures so the CLI can report which
// step failed and why.
package abort

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a run-terminating failure.
type Kind string

const (
	KindConfig       Kind = "config"       // missing or invalid configuration
	KindTransport    Kind = "transport"    // LLM endpoint unreachable after retry
	KindProtocol     Kind = "protocol"     // reply does not match the prompt contract
	KindValidation   Kind = "validation"   // generated artefact failed verification
	KindSafety       Kind = "safety"       // operator rejected execution
	KindPrecondition Kind = "precondition" // a phase ran before its input was produced
	KindInternal     Kind = "internal"
)

// Error is a run-terminating failure attributed to a step.
type Error struct {
	Kind Kind
	Step string
	Err  error
}

func (e *Error) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err as a failure of the given kind at step.
func New(kind Kind, step string, err error) *Error {
	return &Error{Kind: kind, Step: step, Err: err}
}

// Errorf formats a new failure of the given kind at step.
func Errorf(kind Kind, step, format string, args ...any) *Error {
	return &Error{Kind: kind, Step: step, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain, or KindInternal
// if there is none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// StepOf returns the step of the outermost *Error in err's chain.
func StepOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Step
	}
	return ""
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
