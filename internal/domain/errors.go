package domain

import (
	"errors"
	"fmt"
)

// Kind classifies repository failures.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindParse
	KindProtocol
	KindNotImplemented
	KindPreconditionFailed
)

var (
	ErrTransport          = errors.New("transport error")
	ErrParse              = errors.New("parse error")
	ErrProtocol           = errors.New("protocol error")
	ErrNotImplemented     = errors.New("not implemented")
	ErrPreconditionFailed = errors.New("precondition failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindParse:
		return ErrParse
	case KindProtocol:
		return ErrProtocol
	case KindNotImplemented:
		return ErrNotImplemented
	case KindPreconditionFailed:
		return ErrPreconditionFailed
	default:
		return nil
	}
}

func (k Kind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every public repository operation. It matches its
// kind's sentinel with errors.Is.
type Error struct {
	Kind Kind
	Op   string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	var msg string
	switch {
	case e.Op != "" && e.ID != "":
		msg = fmt.Sprintf("cannot %s card %q", e.Op, e.ID)
	case e.Op != "":
		msg = "cannot " + e.Op
	default:
		msg = e.Kind.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// NewError builds an *Error of the given kind.
func NewError(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
