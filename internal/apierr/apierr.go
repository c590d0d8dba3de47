package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures at the network boundary.
type Kind string

const (
	KindAuthExpired        Kind = "auth_expired"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountBlocked     Kind = "account_blocked"
	KindValidationFailed   Kind = "validation_failed"
	KindNetworkUnavailable Kind = "network_unavailable"
	KindActionFailed       Kind = "action_failed"
	KindUnknown            Kind = "unknown"
)

// CodeAccountBlocked is the backend code sent with 403 for blocked accounts.
const CodeAccountBlocked = "ACCOUNT_BLOCKED"

// Error is a classified failure carrying the backend's message when present.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s", e.Kind, http.StatusText(e.Status))
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds an error of the given kind.
func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// AuthExpired is returned for 401 on an authenticated call.
func AuthExpired(msg string) *Error {
	return &Error{Kind: KindAuthExpired, Status: http.StatusUnauthorized, Message: msg}
}

// NetworkUnavailable is returned when the backend cannot be reached.
func NetworkUnavailable(msg string, err error) *Error {
	return &Error{Kind: KindNetworkUnavailable, Message: msg, Err: err}
}

// Validation is returned for client- or server-side field validation failures.
func Validation(msg, field string) *Error {
	return &Error{Kind: KindValidationFailed, Status: http.StatusBadRequest, Message: msg, Field: field}
}

// ActionFailed wraps a bulk action failure with the message shown to the operator.
func ActionFailed(msg string, err error) *Error {
	e := &Error{Kind: KindActionFailed, Message: msg, Err: err}
	var src *Error
	if errors.As(err, &src) {
		e.Status = src.Status
		e.Code = src.Code
	}
	return e
}

// FromResponse classifies a non-2xx response.
func FromResponse(status int, code, msg, field string) *Error {
	e := &Error{Status: status, Code: code, Message: msg, Field: field}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuthExpired
	case status == http.StatusForbidden && code == CodeAccountBlocked:
		e.Kind = KindAccountBlocked
	case status >= 400 && status < 500 && msg != "":
		e.Kind = KindValidationFailed
	default:
		e.Kind = KindUnknown
	}
	return e
}

// KindOf returns the kind of err, KindUnknown when unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// FieldOf returns the offending field of a validation failure.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// UserMessage converts err to the text shown in a banner.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
