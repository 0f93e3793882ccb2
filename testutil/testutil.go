package testutil

import (
	"fmt"
	"testing"
	"time"

	"content-studio/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// driverName is the pure Go driver that pocketbase also links in. Registering
// a second driver under the same name panics.
const driverName = "sqlite"

// NewTestDB opens a private in-memory database with every table migrated.
// A single connection serializes transactions the way row locks do in postgres.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Dialector{DriverName: driverName, DSN: dsn}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

// AddMember creates a workspace member and returns its user id.
func AddMember(t testing.TB, db *gorm.DB, workspaceID string, role models.Role) string {
	t.Helper()
	member := models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      uuid.NewString(),
		Role:        role,
	}
	require.NoError(t, db.Create(&member).Error)
	return member.UserID
}

// CreateContent inserts an item directly in the given status.
func CreateContent(t testing.TB, db *gorm.DB, workspaceID, createdBy string, status models.ContentStatus) *models.ContentItem {
	t.Helper()
	item := &models.ContentItem{
		WorkspaceID: workspaceID,
		Title:       "Launch video",
		Script:      "Intro, demo, outro",
		Caption:     "New release #launch #golang",
		Status:      status,
		CreatedBy:   createdBy,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

// CreateAccount inserts an active social account.
func CreateAccount(t testing.TB, db *gorm.DB, workspaceID string, platform models.Platform, expiresAt *time.Time) *models.SocialAccount {
	t.Helper()
	account := &models.SocialAccount{
		WorkspaceID: workspaceID,
		Platform:    platform,
		AccountName: string(platform) + " account",
		AccountID:   string(platform) + "-external-id",
		AccessToken: "token-" + string(platform),
		ExpiresAt:   expiresAt,
		IsActive:    true,
		Version:     1,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}
