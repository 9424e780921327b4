// Package status defines the result codes shared by the host and the backend
// and the structured error the Go-side driving APIs build from them.
//
// Every operation that crosses the host/backend boundary returns a Status.
// Nothing unwinds across the boundary: a caller inspects the code it gets back
// and, when it needs to say more, reports through the message channel.
package status

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the result of any fallible protocol operation.
type Status int32

const (
	OK        Status = iota // success
	NoSyms                  // symbols requested that have not been added or resolved
	BadHandle               // no claimed object associated with the handle
	Err                     // any other failure
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case NoSyms:
		return "NO_SYMS"
	case BadHandle:
		return "BAD_HANDLE"
	case Err:
		return "ERR"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Valid reports whether s is one of the four defined codes.
func (s Status) Valid() bool {
	return s >= OK && s <= Err
}

// Error is the structured error returned by host-side driving calls.
type Error struct {
	Cause  error
	Op     string
	Detail string
	Status Status
}

// Sentinels for errors.Is. They match any *Error carrying the same Status.
var (
	ErrNoSyms    = &Error{Status: NoSyms}
	ErrBadHandle = &Error{Status: BadHandle}
	ErrFailed    = &Error{Status: Err}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Status.String())

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Status, and on Op when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return e.Status == t.Status
}

// Errorf creates an Error for op with a formatted detail message.
func Errorf(op string, s Status, format string, args ...any) *Error {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &Error{Op: op, Status: s, Detail: detail}
}

// Wrap creates an Error for op caused by err.
func Wrap(op string, s Status, err error) *Error {
	return &Error{Op: op, Status: s, Cause: err}
}

// Check converts a status returned across the boundary into an error.
// OK yields nil.
func Check(op string, s Status) error {
	if s == OK {
		return nil
	}
	return &Error{Op: op, Status: s}
}

// Of extracts the Status carried by err. A nil error is OK and an error
// without a Status is Err.
func Of(err error) Status {
	if err == nil {
		return OK
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Status
	}
	return Err
}
