package helpers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"
)

type SuccessResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type ErrorResponse struct {
	Status  bool              `json:"status"`
	Message string            `json:"message"`
	Kind    ErrorKind         `json:"kind,omitempty"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func Success(e *core.RequestEvent, message string, data interface{}) error {
	return e.JSON(http.StatusOK, SuccessResponse{
		Status:  true,
		Message: message,
		Data:    data,
	})
}

// Outcome answers 200 with an explicit status flag. Multi-platform publishing
// uses it so a partial failure still returns the per-platform details.
func Outcome(e *core.RequestEvent, ok bool, message string, data interface{}) error {
	return e.JSON(http.StatusOK, SuccessResponse{
		Status:  ok,
		Message: message,
		Data:    data,
	})
}

// Error writes err using the status that matches its kind. Internal causes
// are logged, never echoed.
func Error(e *core.RequestEvent, err error) error {
	kind := KindOf(err)
	response := ErrorResponse{
		Status:  false,
		Message: err.Error(),
		Kind:    kind,
	}
	if appErr, ok := AsAppError(err); ok {
		response.Message = appErr.Error()
		response.Code = appErr.Code
		response.Details = appErr.Context
	}
	if kind == KindInternal {
		response.Message = "internal server error"
		if appErr, ok := AsAppError(err); ok && appErr.Message != "" {
			response.Message = appErr.Message
		}
		if e.App != nil {
			e.App.Logger().Error("request failed", append(LogAttrs(err), "path", e.Request.URL.Path)...)
		}
	}
	return e.JSON(HTTPStatus(kind), response)
}
