package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContentStatus string

const (
	StatusDraft            ContentStatus = "draft"
	StatusWaitingForEditor ContentStatus = "waiting_for_editor"
	StatusEdited           ContentStatus = "edited"
	StatusReview           ContentStatus = "review"
	StatusRevision         ContentStatus = "revision"
	StatusApproved         ContentStatus = "approved"
	StatusScheduled        ContentStatus = "scheduled"
	StatusPublished        ContentStatus = "published"
)

// AllStatuses lists every status in workflow order.
var AllStatuses = []ContentStatus{
	StatusDraft,
	StatusWaitingForEditor,
	StatusEdited,
	StatusReview,
	StatusRevision,
	StatusApproved,
	StatusScheduled,
	StatusPublished,
}

func (s ContentStatus) Valid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type ContentItem struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID     string          `gorm:"column:workspace_id;not null;size:36;index" json:"workspace_id"`
	Title           string          `gorm:"not null;size:200" json:"title"`
	Script          string          `gorm:"type:text" json:"script"`
	Caption         string          `gorm:"type:text" json:"caption"`
	Note            string          `gorm:"type:text" json:"note"`
	Label           string          `gorm:"size:100" json:"label"`
	Status          ContentStatus   `gorm:"not null;size:32;index" json:"status"`
	CreatedBy       string          `gorm:"column:created_by;not null;size:36" json:"created_by"`
	AssignedEditor  *string         `gorm:"column:assigned_editor;size:36" json:"assigned_editor"`
	AssignedManager *string         `gorm:"column:assigned_manager;size:36" json:"assigned_manager"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoCreateTime;autoUpdateTime" json:"updated_at"`
	Files           []ContentFile   `gorm:"foreignKey:ContentID" json:"files,omitempty"`
	Comments        []Comment       `gorm:"foreignKey:ContentID" json:"comments,omitempty"`
	History         []StatusHistory `gorm:"foreignKey:ContentID" json:"status_history,omitempty"`
}

func (ContentItem) TableName() string { return "content_briefs" }

func (c *ContentItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// IsAssignedManager reports whether userID is the item's assigned manager.
func (c *ContentItem) IsAssignedManager(userID string) bool {
	return c.AssignedManager != nil && *c.AssignedManager == userID
}

func (c *ContentItem) IsAssignedEditor(userID string) bool {
	return c.AssignedEditor != nil && *c.AssignedEditor == userID
}

// PublishableFiles are the files sent to platforms; editing material never is.
func (c *ContentItem) PublishableFiles() []ContentFile {
	files := make([]ContentFile, 0, len(c.Files))
	for _, f := range c.Files {
		if !f.IsEditingMaterial {
			files = append(files, f)
		}
	}
	return files
}

type ContentFile struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	ContentID         string    `gorm:"column:content_id;not null;size:36;index" json:"content_id"`
	FileURL           string    `gorm:"column:file_url;not null;size:1024" json:"file_url"`
	FileName          string    `gorm:"column:file_name;not null;size:255" json:"file_name"`
	FileType          string    `gorm:"column:file_type;size:127" json:"file_type"`
	FileSize          int64     `gorm:"column:file_size" json:"file_size"`
	IsEditingMaterial bool      `gorm:"column:is_editing_material;not null" json:"is_editing_material"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ContentFile) TableName() string { return "content_files" }

func (f *ContentFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// StatusHistory is append-only.
type StatusHistory struct {
	ID        string        `gorm:"primaryKey;size:36" json:"id"`
	ContentID string        `gorm:"column:content_id;not null;size:36;index" json:"content_id"`
	OldStatus ContentStatus `gorm:"column:old_status;not null;size:32" json:"old_status"`
	NewStatus ContentStatus `gorm:"column:new_status;not null;size:32" json:"new_status"`
	ChangedBy string        `gorm:"column:changed_by;not null;size:36" json:"changed_by"`
	Feedback  string        `gorm:"type:text" json:"feedback,omitempty"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

func (StatusHistory) TableName() string { return "content_status_history" }

func (h *StatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// Comment is append-only.
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ContentID string    `gorm:"column:content_id;not null;size:36;index" json:"content_id"`
	UserID    string    `gorm:"column:user_id;not null;size:36" json:"user_id"`
	Comment   string    `gorm:"type:text;not null" json:"comment"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Comment) TableName() string { return "content_comments" }

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
