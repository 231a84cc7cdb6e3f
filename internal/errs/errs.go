// Package errs defines the error taxonomy shared by the gateway
// adapters, the reconciler and the HTTP layer. Every error carries a
// Kind so handlers can map it to an HTTP status without inspecting
// message text.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP mapping and logging.
type Kind int

const (
	// KindValidation covers missing or malformed required fields.
	KindValidation Kind = iota
	// KindAuthentication covers signature or credential mismatches.
	KindAuthentication
	// KindGatewayUnavailable covers upstream HTTP failures and non-2xx
	// provider responses.
	KindGatewayUnavailable
	// KindNotFound covers unknown session or order references.
	KindNotFound
	// KindStateConflict covers transitions that violate the allowed-edge
	// invariant. Expected under racing notifications, never fatal.
	KindStateConflict
)

// Error is the typed error used across the payment core.
type Error struct {
	Kind    Kind
	Message string
	// Detail carries the upstream response body for gateway failures so
	// callers can diagnose provider errors. Never contains secrets.
	Detail string
	// UpstreamStatus is the provider's HTTP status for gateway failures,
	// 0 when the request never completed. Interfaces that mirror the
	// provider's failure verbatim use it.
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match on Kind, so sentinel comparisons like
// errors.Is(err, errs.NotFound("")) work regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// HTTPStatus maps the error kind to the status the external interface
// contract requires.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindGatewayUnavailable:
		return http.StatusInternalServerError
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Authentication(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func StateConflict(msg string) *Error {
	return &Error{Kind: KindStateConflict, Message: msg}
}

// GatewayUnavailable wraps an upstream failure, preserving the provider
// response body in Detail for diagnosis.
func GatewayUnavailable(msg, detail string, err error) *Error {
	return &Error{Kind: KindGatewayUnavailable, Message: msg, Detail: detail, Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and a
// boolean reporting whether it was one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
