// Package apperr defines the closed error taxonomy used at the repository
// boundary. Raw transport and HTTP failures are translated into one of these
// kinds; callers above the repositories only ever see taxonomy values.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

type Kind int

const (
	Unknown Kind = iota
	Network
	Timeout
	Server
	Unauthorized
	Forbidden
	NotFound
	Validation
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Server:
		return "server"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error carries a taxonomy kind plus, when known, the originating HTTP status
// and server-supplied field-level validation messages.
type Error struct {
	Kind   Kind
	Status int
	Msg    string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth offering a retry for.
func (e *Error) Retryable() bool {
	return e.Kind == Network || e.Kind == Timeout || e.Kind == Server
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// FromStatus maps an HTTP status code to a taxonomy error.
func FromStatus(status int, msg string) *Error {
	e := &Error{Status: status, Msg: msg}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = Unauthorized
	case status == http.StatusForbidden:
		e.Kind = Forbidden
	case status == http.StatusNotFound:
		e.Kind = NotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = Validation
	case status >= 500:
		e.Kind = Server
	default:
		e.Kind = Unknown
	}
	return e
}

// FromTransport classifies errors produced before an HTTP response exists:
// cancelled contexts, timeouts and connectivity failures.
func FromTransport(err error) *Error {
	var taxed *Error
	if errors.As(err, &taxed) {
		return taxed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(Timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Wrap(Timeout, err)
		}
		return Wrap(Network, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Wrap(Network, err)
	}
	return Wrap(Unknown, err)
}

func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// KindOf extracts the taxonomy kind from any error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether err is a retryable taxonomy error.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
