package helpers

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindForbiddenTransition ErrorKind = "forbidden_transition"
	KindAccessDenied        ErrorKind = "access_denied"
	KindStaleStatus         ErrorKind = "stale_status"
	KindNotFound            ErrorKind = "not_found"
	KindNoActiveAccount     ErrorKind = "no_active_account"
	KindTokenExpired        ErrorKind = "token_expired"
	KindUpstreamTransient   ErrorKind = "upstream_transient"
	KindUpstreamTimeout     ErrorKind = "upstream_timeout"
	KindUpstreamPermanent   ErrorKind = "upstream_permanent"
	KindInternal            ErrorKind = "internal"
)

// Well-known codes carried next to a kind.
const (
	CodeProcessingTimeout = "processing_timeout"
	CodeMediaNotReady     = "media_not_ready"
	CodeCanceled          = "canceled"
)

// AppError is the single error type that crosses package boundaries. Adapters
// normalize platform failures into it; the orchestrator only reads it.
type AppError struct {
	Kind     ErrorKind
	Code     string
	Message  string
	Platform string
	Context  map[string]string
	Err      error
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Platform != "" {
		return e.Platform + ": " + msg
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithCode returns e with its code set.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func (e *AppError) WithPlatform(platform string) *AppError {
	e.Platform = platform
	return e
}

func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = map[string]string{}
	}
	e.Context[key] = value
	return e
}

func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

func NewError(kind ErrorKind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *AppError {
	return NewError(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *AppError {
	return NewError(KindNotFound, format, args...)
}

func AccessDenied(format string, args ...interface{}) *AppError {
	return NewError(KindAccessDenied, format, args...)
}

// Internal wraps a storage or programming error with context. The message
// shown to callers stays generic; the cause is kept for logs.
func Internal(err error, context string) *AppError {
	return &AppError{Kind: KindInternal, Message: context, Err: errors.Wrap(err, context)}
}

// AsAppError finds the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for foreign errors and "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *AppError in err's chain.
func CodeOf(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsClientError reports whether the kind is attributable to caller input or
// caller state rather than to the server or an upstream platform.
func IsClientError(kind ErrorKind) bool {
	switch kind {
	case KindValidation, KindForbiddenTransition, KindAccessDenied, KindStaleStatus,
		KindNotFound, KindNoActiveAccount, KindTokenExpired:
		return true
	}
	return false
}

func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindValidation, KindNoActiveAccount, KindTokenExpired:
		return http.StatusBadRequest
	case KindForbiddenTransition, KindAccessDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindStaleStatus:
		return http.StatusConflict
	case KindUpstreamTransient, KindUpstreamTimeout, KindUpstreamPermanent:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
