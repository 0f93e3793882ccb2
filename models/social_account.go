package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
)

var AllPlatforms = []Platform{PlatformFacebook, PlatformInstagram, PlatformYouTube, PlatformTikTok}

func (p Platform) Valid() bool {
	for _, platform := range AllPlatforms {
		if p == platform {
			return true
		}
	}
	return false
}

type SocialAccount struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID  string     `gorm:"column:workspace_id;not null;size:36;uniqueIndex:idx_social_account_identity" json:"workspace_id"`
	Platform     Platform   `gorm:"not null;size:32;uniqueIndex:idx_social_account_identity" json:"platform"`
	AccountName  string     `gorm:"column:account_name;not null;size:255;uniqueIndex:idx_social_account_identity" json:"account_name"`
	AccountID    string     `gorm:"column:account_id;size:255" json:"account_id"`
	AccessToken  string     `gorm:"column:access_token;not null;size:2048" json:"-"`
	RefreshToken string     `gorm:"column:refresh_token;size:2048" json:"-"`
	ExpiresAt    *time.Time `gorm:"column:expires_at" json:"expires_at"`
	IsActive     bool       `gorm:"column:is_active;not null;index" json:"is_active"`
	Version      int64      `gorm:"not null" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoCreateTime;autoUpdateTime" json:"updated_at"`
}

func (SocialAccount) TableName() string { return "social_accounts" }

func (a *SocialAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Expired reports whether the access token has a known expiry before now.
func (a *SocialAccount) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}
