package helpers

import (
	"context"
	"net"
	"net/http"

	"github.com/pkg/errors"
)

// UpstreamError classifies a failed call to a platform API. Rate limits,
// server errors and network failures are transient; other HTTP failures are
// permanent; deadlines become UpstreamTimeout. An *AppError passes through.
func UpstreamError(platform string, err error, message string) *AppError {
	if appErr, ok := AsAppError(err); ok {
		if appErr.Platform == "" {
			appErr.Platform = platform
		}
		return appErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindUpstreamTimeout, "%s: timed out", message).WithPlatform(platform).Wrap(err)
	case errors.Is(err, context.Canceled):
		return NewError(KindUpstreamTimeout, "%s: canceled", message).WithPlatform(platform).WithCode(CodeCanceled).Wrap(err)
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		kind := KindUpstreamPermanent
		if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500 {
			kind = KindUpstreamTransient
		}
		return NewError(kind, "%s: %s", message, httpErr.Status).WithPlatform(platform).Wrap(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewError(KindUpstreamTransient, "%s: %v", message, err).WithPlatform(platform).Wrap(err)
	}
	return NewError(KindUpstreamPermanent, "%s: %v", message, err).WithPlatform(platform).Wrap(err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return KindOf(err) == KindUpstreamTransient
}
