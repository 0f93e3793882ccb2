package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleOwner              Role = "owner"
	RoleScriptWriter       Role = "script_writer"
	RoleVideoEditor        Role = "video_editor"
	RoleSocialMediaManager Role = "social_media_manager"
)

// SystemActorID identifies transitions made by the scheduler rather than a user.
const SystemActorID = "00000000-0000-0000-0000-000000000000"

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleScriptWriter, RoleVideoEditor, RoleSocialMediaManager:
		return true
	}
	return false
}

// WorkspaceMember is owned by the membership service; this module only reads it.
type WorkspaceMember struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string    `gorm:"column:workspace_id;not null;size:36;uniqueIndex:idx_workspace_member" json:"workspace_id"`
	UserID      string    `gorm:"column:user_id;not null;size:36;uniqueIndex:idx_workspace_member" json:"user_id"`
	Role        Role      `gorm:"not null;size:32" json:"role"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (WorkspaceMember) TableName() string { return "workspace_members" }

func (m *WorkspaceMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
