package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	SchedulePublished ScheduleStatus = "published"
	ScheduleFailed    ScheduleStatus = "failed"
)

// ScheduledPost is one deferred publish intent for one platform. Status moves
// from scheduled to exactly one terminal value and never again.
type ScheduledPost struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	ContentID    string         `gorm:"column:content_id;not null;size:36;index:idx_scheduled_target" json:"content_id"`
	Platform     Platform       `gorm:"not null;size:32;index:idx_scheduled_target" json:"platform"`
	ScheduledAt  time.Time      `gorm:"column:scheduled_at;not null;index" json:"scheduled_at"`
	Status       ScheduleStatus `gorm:"not null;size:16;index" json:"status"`
	PublishedAt  *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	PostID       string         `gorm:"column:post_id;size:255" json:"post_id,omitempty"`
	ErrorMessage string         `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoCreateTime;autoUpdateTime" json:"updated_at"`
}

func (ScheduledPost) TableName() string { return "scheduled_posts" }

func (p *ScheduledPost) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
