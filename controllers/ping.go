package controllers

import (
	"content-studio/helpers"
	"content-studio/metrics"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

func SetupSystemRoutes(se *core.ServeEvent) {
	se.Router.GET("/api/v1/ping", func(e *core.RequestEvent) error {
		return Ping(e)
	})
	se.Router.GET("/metrics", apis.WrapStdHandler(metrics.Handler()))
}

// @Summary Health Check Endpoint
// @Schemes
// @Description Simple ping endpoint to check if the API is running
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} helpers.SuccessResponse "ping success"
// @Failure 400 {object} helpers.ErrorResponse "error"
// @Router /api/v1/ping [get]
func Ping(e *core.RequestEvent) error {
	return helpers.Success(e, "Ping success", nil)
}
