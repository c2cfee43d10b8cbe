package storage

import (
	"errors"
	"fmt"
)

// ErrKind categorizes storage failures so callers can map them to a response
// without string matching.
type ErrKind string

const (
	KindIO         ErrKind = "io"
	KindSerialize  ErrKind = "serialize"
	KindParse      ErrKind = "parse"
	KindNotFound   ErrKind = "not_found"
	KindValidation ErrKind = "validation"
)

// Error is the typed error returned by the store and query layer.
type Error struct {
	Kind ErrKind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrKind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// IsNotFound reports whether err is a storage not-found error.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindNotFound
}

// IsValidation reports whether err is a storage validation error.
func IsValidation(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindValidation
}
