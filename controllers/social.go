package controllers

import (
	"fmt"
	"time"

	"content-studio/helpers"
	"content-studio/models"
	"content-studio/publishing"
	"content-studio/workflow"

	"github.com/pocketbase/pocketbase/core"
)

func SetupSocialRoutes(se *core.ServeEvent, deps *Deps) {
	g := se.Router.Group("/api/v1/social")
	g.BindFunc(RequireActor(deps))

	g.POST("/publish", func(e *core.RequestEvent) error {
		return PublishContent(e, deps)
	})
	g.GET("/accounts", func(e *core.RequestEvent) error {
		return ListAccounts(e, deps)
	})
	g.POST("/accounts/{id}/refresh", func(e *core.RequestEvent) error {
		return RefreshAccount(e, deps)
	})
	g.DELETE("/accounts/{id}", func(e *core.RequestEvent) error {
		return DisconnectAccount(e, deps)
	})
}

type publishRequest struct {
	ContentID   string            `json:"contentId"`
	Platforms   []models.Platform `json:"platforms"`
	Title       string            `json:"title"`
	Caption     string            `json:"caption"`
	ScheduledAt *time.Time        `json:"scheduledAt"`
}

type publishResponse struct {
	*publishing.Summary
	StatusUpdated bool `json:"statusUpdated"`
}

type scheduleResponse struct {
	Scheduled   bool                   `json:"scheduled"`
	Platforms   []models.Platform      `json:"platforms"`
	ScheduledAt time.Time              `json:"scheduledAt"`
	Posts       []models.ScheduledPost `json:"posts"`
}

// PublishContent publishes now or, with scheduledAt, queues the post. A
// partial failure still answers 200 with the per-platform results. Publishing
// now requires the same permission as the approved to published transition.
func PublishContent(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	var body publishRequest
	if err := e.BindBody(&body); err != nil {
		return invalidBody(e, err)
	}
	if body.ContentID == "" {
		return helpers.Error(e, helpers.Validation("Content ID is required"))
	}
	if len(body.Platforms) == 0 {
		return helpers.Error(e, helpers.Validation("At least one platform must be selected"))
	}

	ctx := e.Request.Context()
	item, err := deps.Engine.Publishable(ctx, actor, body.ContentID)
	if err != nil {
		return helpers.Error(e, err)
	}
	req, err := publishing.BuildRequest(ctx, deps.Files, item, body.Title, body.Caption)
	if err != nil {
		return helpers.Error(e, err)
	}

	if body.ScheduledAt != nil {
		posts, err := deps.Queue.Schedule(ctx, actor, item.ID, body.Platforms, *body.ScheduledAt)
		if err != nil {
			return helpers.Error(e, err)
		}
		return helpers.Success(e, fmt.Sprintf("Post scheduled for %d platform(s)", len(body.Platforms)), scheduleResponse{
			Scheduled:   true,
			Platforms:   body.Platforms,
			ScheduledAt: *body.ScheduledAt,
			Posts:       posts,
		})
	}

	if err := workflow.CheckPublish(item, actor); err != nil {
		return helpers.Error(e, err)
	}

	summary, err := deps.Publisher.PublishToMultiplePlatforms(ctx, actor.WorkspaceID, body.Platforms, req)
	if err != nil {
		return helpers.Error(e, err)
	}

	response := publishResponse{Summary: summary}
	if summary.AllSucceeded() {
		_, err := deps.Engine.TransitionStatus(ctx, actor, workflow.TransitionRequest{
			ContentID: item.ID,
			Target:    models.StatusPublished,
			Expected:  item.Status,
		})
		if err != nil {
			deps.Logger.Warn("Published but failed to update content status", append(helpers.LogAttrs(err), "content_id", item.ID)...)
		} else {
			response.StatusUpdated = true
		}
	}
	return helpers.Outcome(e, summary.AllSucceeded(), summary.Message(), response)
}

func ListAccounts(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	accounts, err := deps.Accounts.List(e.Request.Context(), actor.WorkspaceID)
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Accounts fetched", accounts)
}

func RefreshAccount(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	account, err := deps.Refresh.Refresh(e.Request.Context(), actor.WorkspaceID, e.Request.PathValue("id"))
	if err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Token refreshed", account)
}

func DisconnectAccount(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	if actor.Role != models.RoleOwner && actor.Role != models.RoleSocialMediaManager {
		return helpers.Error(e, helpers.AccessDenied("only owners and social media managers can disconnect accounts"))
	}
	if err := deps.Accounts.Deactivate(e.Request.Context(), actor.WorkspaceID, e.Request.PathValue("id")); err != nil {
		return helpers.Error(e, err)
	}
	return helpers.Success(e, "Account disconnected", nil)
}
