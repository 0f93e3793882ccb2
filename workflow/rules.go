package workflow

import (
	"content-studio/helpers"
	"content-studio/models"
)

// Actor is an already-authenticated user acting inside one workspace.
type Actor struct {
	UserID      string
	WorkspaceID string
	Role        models.Role
}

// SystemActor is used by the scheduler when it completes a scheduled publish.
func SystemActor(workspaceID string) Actor {
	return Actor{UserID: models.SystemActorID, WorkspaceID: workspaceID, Role: models.RoleOwner}
}

type permission func(item *models.ContentItem, actor Actor) bool

func isCreator(item *models.ContentItem, actor Actor) bool {
	return item.CreatedBy == actor.UserID
}

func hasRole(role models.Role) permission {
	return func(_ *models.ContentItem, actor Actor) bool {
		return actor.Role == role
	}
}

// managesContent accepts the assigned manager or any social media manager.
func managesContent(item *models.ContentItem, actor Actor) bool {
	return item.IsAssignedManager(actor.UserID) || actor.Role == models.RoleSocialMediaManager
}

type rule struct {
	from    models.ContentStatus
	to      []models.ContentStatus
	allowed permission
}

var rules = []rule{
	{models.StatusDraft, []models.ContentStatus{models.StatusWaitingForEditor}, isCreator},
	{models.StatusWaitingForEditor, []models.ContentStatus{models.StatusEdited}, hasRole(models.RoleVideoEditor)},
	{models.StatusRevision, []models.ContentStatus{models.StatusEdited}, hasRole(models.RoleVideoEditor)},
	{models.StatusEdited, []models.ContentStatus{models.StatusReview, models.StatusApproved, models.StatusRevision}, managesContent},
	{models.StatusReview, []models.ContentStatus{models.StatusApproved, models.StatusRevision}, managesContent},
	{models.StatusApproved, []models.ContentStatus{models.StatusScheduled, models.StatusPublished}, hasRole(models.RoleSocialMediaManager)},
}

// CanTransition reports whether actor may move item from its current status
// to target. Owners are unrestricted.
func CanTransition(item *models.ContentItem, actor Actor, target models.ContentStatus) bool {
	if actor.Role == models.RoleOwner {
		return true
	}
	for _, r := range rules {
		if r.from != item.Status {
			continue
		}
		for _, to := range r.to {
			if to == target && r.allowed(item, actor) {
				return true
			}
		}
	}
	return false
}

// CheckPublish returns nil when actor may publish item immediately. Only
// approved or scheduled items are publishable.
func CheckPublish(item *models.ContentItem, actor Actor) error {
	if item.Status != models.StatusApproved && item.Status != models.StatusScheduled {
		return helpers.NewError(helpers.KindForbiddenTransition,
			"content must be approved before it can be published, current status is %s", item.Status).
			WithContext("from", string(item.Status)).
			WithContext("to", string(models.StatusPublished)).
			WithContext("role", string(actor.Role))
	}
	if !CanTransition(item, actor, models.StatusPublished) {
		return helpers.AccessDenied("role %s cannot publish %s content", actor.Role, item.Status)
	}
	return nil
}
