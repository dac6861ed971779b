// Package apierr classifies failures of the remote sweets service.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the storefront's error taxonomy for remote operations.
type Kind string

const (
	KindNotAuthenticated Kind = "not_authenticated"
	KindNotAuthorized    Kind = "not_authorized"
	KindValidationFailed Kind = "validation_failed"
	KindNotFound         Kind = "not_found"
	KindStockExhausted   Kind = "stock_exhausted"
	KindTransport        Kind = "transport"
	KindUnknown          Kind = "unknown"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrNotAuthenticated = &Error{Kind: KindNotAuthenticated, Message: "not authenticated"}
	ErrNotAuthorized    = &Error{Kind: KindNotAuthorized, Message: "not authorized"}
	ErrValidationFailed = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrStockExhausted   = &Error{Kind: KindStockExhausted, Message: "not enough stock available"}
	ErrTransport        = &Error{Kind: KindTransport, Message: "transport failure"}
)

// Error wraps a remote failure with its kind, HTTP status and a user-facing message.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so sentinels compare equal to any
// error of the same classification.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New creates an Error of the given kind.
func New(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// Transport wraps a network or decode failure.
func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Message: "request to sweets service failed", Err: err}
}

// FromStatus classifies a non-2xx response. The backend reports "not enough
// stock" as a plain 400, so stock exhaustion is recognised by its message too.
func FromStatus(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}

	kind := KindUnknown
	switch {
	case status == http.StatusUnauthorized:
		kind = KindNotAuthenticated
	case status == http.StatusForbidden:
		kind = KindNotAuthorized
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusConflict:
		kind = KindStockExhausted
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "stock"):
		kind = KindStockExhausted
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		kind = KindValidationFailed
	}

	return &Error{Kind: kind, Status: status, Message: message}
}

// KindOf returns the kind of err, KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
