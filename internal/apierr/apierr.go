package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind categorizes a failure for client-facing translation.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindUnsupportedMedia Kind = "unsupported_media_type"
	KindUnauthorized     Kind = "unauthorized"
	KindUnconfigured     Kind = "unconfigured"

	KindUpstreamAuth         Kind = "upstream_auth"
	KindUpstreamPermission   Kind = "upstream_permission"
	KindUpstreamNotFound     Kind = "upstream_not_found"
	KindUpstreamBadRequest   Kind = "upstream_bad_request"
	KindUpstreamRateLimit    Kind = "upstream_rate_limit"
	KindUpstreamConnectivity Kind = "upstream_connectivity"
	KindUpstreamInternal     Kind = "upstream_internal"

	KindEmptyUpstream      Kind = "empty_upstream_response"
	KindStorageUnavailable Kind = "storage_unavailable"
)

// Error carries a failure category alongside a human-readable message and an
// optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, or "" if err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

var statusByKind = map[Kind]int{
	KindInvalidInput:         http.StatusBadRequest,
	KindUnsupportedMedia:     http.StatusBadRequest,
	KindUnauthorized:         http.StatusUnauthorized,
	KindUnconfigured:         http.StatusServiceUnavailable,
	KindUpstreamAuth:         http.StatusUnauthorized,
	KindUpstreamPermission:   http.StatusForbidden,
	KindUpstreamNotFound:     http.StatusNotFound,
	KindUpstreamBadRequest:   http.StatusBadRequest,
	KindUpstreamRateLimit:    http.StatusTooManyRequests,
	KindUpstreamConnectivity: http.StatusServiceUnavailable,
	KindUpstreamInternal:     http.StatusBadGateway,
	KindEmptyUpstream:        http.StatusBadGateway,
	KindStorageUnavailable:   http.StatusServiceUnavailable,
}

var labelByKind = map[Kind]string{
	KindInvalidInput:         "invalid request",
	KindUnsupportedMedia:     "unsupported media type",
	KindUnauthorized:         "unauthorized",
	KindUnconfigured:         "integration not configured",
	KindUpstreamAuth:         "provider rejected credentials",
	KindUpstreamPermission:   "provider denied permission",
	KindUpstreamNotFound:     "provider resource not found",
	KindUpstreamBadRequest:   "provider rejected request",
	KindUpstreamRateLimit:    "provider rate limit exceeded",
	KindUpstreamConnectivity: "provider unreachable",
	KindUpstreamInternal:     "provider internal error",
	KindEmptyUpstream:        "provider returned an empty response",
	KindStorageUnavailable:   "storage unavailable",
}

// Translate maps any error to a client-facing HTTP status and a detail string.
// The detail is never empty: it falls back from the error's own message, to the
// wrapped cause, to a generic category label.
func Translate(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	var ae *Error
	if !errors.As(err, &ae) {
		detail := strings.TrimSpace(err.Error())
		if detail == "" {
			detail = "internal error"
		}
		return http.StatusInternalServerError, detail
	}
	status, ok := statusByKind[ae.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	detail := strings.TrimSpace(ae.Message)
	if detail == "" && ae.Err != nil {
		detail = strings.TrimSpace(ae.Err.Error())
	}
	if detail == "" {
		detail = labelByKind[ae.Kind]
	}
	if detail == "" {
		detail = "internal error"
	}
	return status, detail
}
