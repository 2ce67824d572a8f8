// Package hosterrors defines the error taxonomy the host and its
// components report through.
package hosterrors

import (
	"errors"
	"fmt"
)

// Kind classifies a host-level failure.
type Kind int

const (
	// TransientIO covers socket accept/connect/read failures that do not
	// require tearing anything down; the caller retries or moves on.
	TransientIO Kind = iota
	// BadHandshake covers cryptographic or structural handshake failures.
	BadHandshake
	// Configuration covers bind failures and invalid addresses supplied
	// by the operator.
	Configuration
	// CorruptPersistence covers a malformed saved peer list.
	CorruptPersistence
	// InvalidState covers programmer/operator errors that leave the host
	// unable to proceed at all, such as a zero-valued identity secret.
	InvalidState
)

func (k Kind) String() string {
	switch k {
	case TransientIO:
		return "transient-io"
	case BadHandshake:
		return "bad-handshake"
	case Configuration:
		return "configuration"
	case CorruptPersistence:
		return "corrupt-persistence"
	case InvalidState:
		return "invalid-state"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// errors.As without parsing message strings.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind and operation label. If err is nil,
// New still returns a non-nil *Error describing the kind alone.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given kind. Callers can also
// use errors.As directly against *Error.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
