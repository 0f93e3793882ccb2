package helpers

import (
	"io"
	"log/slog"
)

// LogAttrs flattens err into slog key/value pairs so every component logs
// failures with the same keys.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}
	attrs := []any{"error", err.Error(), "kind", string(KindOf(err))}
	if appErr, ok := AsAppError(err); ok {
		if appErr.Code != "" {
			attrs = append(attrs, "code", appErr.Code)
		}
		if appErr.Platform != "" {
			attrs = append(attrs, "platform", appErr.Platform)
		}
		for k, v := range appErr.Context {
			attrs = append(attrs, k, v)
		}
		if appErr.Err != nil {
			attrs = append(attrs, "cause", appErr.Err.Error())
		}
	}
	return attrs
}

// DiscardLogger is used where no application logger is wired yet.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
