package workflow

import (
	"context"

	"content-studio/helpers"
	"content-studio/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Members resolves workspace roles. Membership itself is managed elsewhere.
type Members struct {
	db *gorm.DB
}

func NewMembers(db *gorm.DB) *Members {
	return &Members{db: db}
}

// RoleOf returns userID's role in workspaceID, or AccessDenied for non-members.
func (m *Members) RoleOf(ctx context.Context, workspaceID, userID string) (models.Role, error) {
	var member models.WorkspaceMember
	err := m.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", helpers.AccessDenied("not a member of this workspace")
	}
	if err != nil {
		return "", helpers.Internal(err, "load workspace membership")
	}
	return member.Role, nil
}

// Actor resolves the acting identity for one request.
func (m *Members) Actor(ctx context.Context, workspaceID, userID string) (Actor, error) {
	role, err := m.RoleOf(ctx, workspaceID, userID)
	if err != nil {
		return Actor{}, err
	}
	return Actor{UserID: userID, WorkspaceID: workspaceID, Role: role}, nil
}
