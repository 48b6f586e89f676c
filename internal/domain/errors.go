package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure. The HTTP layer maps each kind to a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	default:
		return "internal"
	}
}

// Error is the tagged failure returned by services and repositories.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of the message carried.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrConflict   = &Error{Kind: KindConflict, Message: "conflict"}
	ErrAuth       = &Error{Kind: KindAuth, Message: "unauthorized"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInternal   = &Error{Kind: KindInternal, Message: "internal error"}
)

func Validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }
func Conflict(msg string) error   { return &Error{Kind: KindConflict, Message: msg} }
func Auth(msg string) error       { return &Error{Kind: KindAuth, Message: msg} }
func NotFound(msg string) error   { return &Error{Kind: KindNotFound, Message: msg} }

// Internal wraps an unexpected failure. The message is safe to log but is never sent to clients.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
