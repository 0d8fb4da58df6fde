package engerr

import (
	"errors"
	"fmt"
)

// Error is the engine's structured error type: a stable code, a kind
// discriminant for switch-based handling, category/severity for
// logging, and an optional cause for errors.Unwrap/errors.Is chains.
type Error struct {
	Code      string
	Kind      Kind
	Message   string
	Category  Category
	Severity  Severity
	Details   map[string]string
	Cause     error
	Retryable bool

	// Status is the HTTP status that produced a KindHTTPExpected or
	// KindHTTPStatus error. Zero for every other kind.
	Status int
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is(err, engerr.New(...)) by matching on Kind, which
// is stable across call sites even when Message/Details differ.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func newErr(code string, kind Kind, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Kind:      kind,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// ConfigInvalid wraps an aggregated set of configuration problems;
// always fatal at startup.
func ConfigInvalid(message string) *Error {
	return newErr(ErrCodeConfigInvalid, KindConfigInvalid, message, nil)
}

// HTTPStatus classifies an HTTP response status into the two kinds the
// orchestrator distinguishes: 401/403/404 (expected, page skipped) and
// everything else (retried for 429/5xx, else page errored).
func HTTPStatus(status int, url string) *Error {
	switch status {
	case 401, 403, 404:
		e := newErr(ErrCodeHTTPExpected, KindHTTPExpected, fmt.Sprintf("HTTP %d", status), nil)
		e.Status = status
		return e.WithDetail("url", url)
	default:
		e := newErr(ErrCodeHTTPStatus, KindHTTPStatus, fmt.Sprintf("HTTP %d", status), nil)
		e.Status = status
		e.Retryable = status == 429 || (status >= 500 && status < 600)
		return e.WithDetail("url", url)
	}
}

// Transport wraps a network-level failure (timeout, connection reset,
// DNS failure). Retryable for embedding calls; for page fetches the
// caller falls back to the content cache instead of retrying.
func Transport(message string, cause error) *Error {
	return newErr(ErrCodeTransport, KindTransport, message, cause)
}

// ProviderError wraps an unparseable or bad-shaped embedding provider
// response.
func ProviderError(message string, cause error) *Error {
	return newErr(ErrCodeProviderError, KindProviderError, message, cause)
}

// DimensionMismatch reports a vector whose length does not match the
// namespace's locked dimensionality.
func DimensionMismatch(expected, got int) *Error {
	e := newErr(ErrCodeDimensionMismatch, KindDimensionMismatch,
		fmt.Sprintf("dimension mismatch: expected %d, got %d", expected, got), nil)
	return e
}

// NotFound reports an unknown docset or page.
func NotFound(what, id string) *Error {
	return newErr(ErrCodeNotFound, KindNotFound, fmt.Sprintf("%s not found: %s", what, id), nil)
}

// Cancelled reports a user-requested stop; never increments retry_count.
func Cancelled(message string) *Error {
	return newErr(ErrCodeCancelled, KindCancelled, message, nil)
}

// Internal wraps an unexpected internal failure.
func Internal(message string, cause error) *Error {
	return newErr(ErrCodeInternal, KindInternal, message, cause)
}

// IsRetryable reports whether err (or a *Error in its chain) is marked
// retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// KindOf extracts the Kind of err, or empty string if err is not a
// *Error.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}

// StatusOf extracts the HTTP status carried by a KindHTTPExpected or
// KindHTTPStatus error, or 0.
func StatusOf(err error) int {
	if e, ok := err.(*Error); ok {
		return e.Status
	}
	return 0
}
