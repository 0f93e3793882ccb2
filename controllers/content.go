package controllers

import (
	"net/http"
	"strconv"

	"content-studio/helpers"
	"content-studio/models"
	"content-studio/workflow"

	"github.com/pocketbase/pocketbase/core"
)

func SetupContentRoutes(se *core.ServeEvent, deps *Deps) {
	g := se.Router.Group("/api/v1/content")
	g.BindFunc(RequireActor(deps))

	g.POST("", func(e *core.RequestEvent) error {
		return CreateContent(e, deps)
	})
	g.GET("", func(e *core.RequestEvent) error {
		return ListContent(e, deps)
	})
	g.GET("/dashboard", func(e *core.RequestEvent) error {
		return ContentDashboard(e, deps)
	})
	g.GET("/{id}", func(e *core.RequestEvent) error {
		return GetContent(e, deps)
	})
	g.PATCH("/{id}", func(e *core.RequestEvent) error {
		return UpdateContent(e, deps)
	})
	g.DELETE("/{id}", func(e *core.RequestEvent) error {
		return DeleteContent(e, deps)
	})
	g.PATCH("/{id}/status", func(e *core.RequestEvent) error {
		return UpdateContentStatus(e, deps)
	})
	g.POST("/{id}/files", func(e *core.RequestEvent) error {
		return AddContentFiles(e, deps)
	})
	g.GET("/{id}/comments", func(e *core.RequestEvent) error {
		return ListComments(e, deps)
	})
	g.POST("/{id}/comments", func(e *core.RequestEvent) error {
		return AddComment(e, deps)
	})
	g.GET("/{id}/scheduled", func(e *core.RequestEvent) error {
		return ListScheduledPosts(e, deps)
	})
}

func unauthorized(e *core.RequestEvent) error {
	return e.JSON(http.StatusUnauthorized, helpers.ErrorResponse{Status: false, Message: "Authentication required"})
}

func invalidBody(e *core.RequestEvent, err error) error {
	return helpers.Error(e, helpers.Validation("invalid request body").Wrap(err))
}

func CreateContent(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	var input workflow.CreateInput
	if err := e.BindBody(&input); err != nil {
		return invalidBody(e, err)
	}
	item, err := deps.Engine.Create(e.Request.Context(), actor, input)
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Content created", item)
}

func ListContent(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	q := e.Request.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := workflow.ListFilter{
		Status:       models.ContentStatus(q.Get("status")),
		AssignedToMe: q.Get("assignedToMe") == "true",
		Page:         page,
		Limit:        limit,
	}
	result, err := deps.Engine.List(e.Request.Context(), actor, filter)
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Content fetched", result)
}

func ContentDashboard(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	stats, err := deps.Engine.DashboardStats(e.Request.Context(), actor)
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Dashboard stats", stats)
}

func GetContent(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	item, err := deps.Engine.Get(e.Request.Context(), actor, e.Request.PathValue("id"))
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Content fetched", item)
}

func UpdateContent(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	var input workflow.UpdateInput
	if err := e.BindBody(&input); err != nil {
		return invalidBody(e, err)
	}
	item, err := deps.Engine.Update(e.Request.Context(), actor, e.Request.PathValue("id"), input)
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Content updated", item)
}

func DeleteContent(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	if err := deps.Engine.Delete(e.Request.Context(), actor, e.Request.PathValue("id")); err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Content deleted", nil)
}

type statusRequest struct {
	Status         models.ContentStatus `json:"status"`
	ExpectedStatus models.ContentStatus `json:"expectedStatus"`
	Feedback       string               `json:"feedback"`
}

// UpdateContentStatus always sends an expected status. A client that did not
// send one is held to the status read here.
func UpdateContentStatus(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	var body statusRequest
	if err := e.BindBody(&body); err != nil {
		return invalidBody(e, err)
	}
	if body.Status == "" {
		return helpers.Error(e, helpers.Validation("status is required"))
	}

	ctx := e.Request.Context()
	contentID := e.Request.PathValue("id")
	if body.ExpectedStatus == "" {
		current, err := deps.Engine.Get(ctx, actor, contentID)
		if err != nil {
			return helpers.Error(e, err)
		}
		body.ExpectedStatus = current.Status
	}

	item, err := deps.Engine.TransitionStatus(ctx, actor, workflow.TransitionRequest{
		ContentID: contentID,
		Target:    body.Status,
		Expected:  body.ExpectedStatus,
		Feedback:  body.Feedback,
	})
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Status updated", item)
}

func AddContentFiles(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	var body struct {
		Files []workflow.FileInput `json:"files"`
	}
	if err := e.BindBody(&body); err != nil {
		return invalidBody(e, err)
	}
	files, err := deps.Engine.AddFiles(e.Request.Context(), actor, e.Request.PathValue("id"), body.Files)
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Files added", files)
}

func ListComments(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	comments, err := deps.Engine.Comments(e.Request.Context(), actor, e.Request.PathValue("id"))
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Comments fetched", comments)
}

func AddComment(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	var body struct {
		Comment string `json:"comment"`
	}
	if err := e.BindBody(&body); err != nil {
		return invalidBody(e, err)
	}
	comment, err := deps.Engine.AddComment(e.Request.Context(), actor, e.Request.PathValue("id"), body.Comment)
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Comment added", comment)
}

func ListScheduledPosts(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	posts, err := deps.Queue.Pending(e.Request.Context(), actor, e.Request.PathValue("id"))
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Scheduled posts fetched", posts)
}
