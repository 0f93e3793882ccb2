package testutil

import (
	"testing"

	"content-studio/models"

	"github.com/google/uuid"
	_ "github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The app binary links pocketbase's sqlite driver; the test database must
// open alongside it.
func TestNewTestDBWithPocketBaseLinked(t *testing.T) {
	db := NewTestDB(t)
	ws := uuid.NewString()

	userID := AddMember(t, db, ws, models.RoleOwner)
	item := CreateContent(t, db, ws, userID, models.StatusDraft)

	var loaded models.ContentItem
	require.NoError(t, db.First(&loaded, "id = ?", item.ID).Error)
	assert.Equal(t, models.StatusDraft, loaded.Status)
}

func TestNewTestDBIsPrivate(t *testing.T) {
	first := NewTestDB(t)
	second := NewTestDB(t)

	CreateAccount(t, first, uuid.NewString(), models.PlatformFacebook, nil)

	var count int64
	require.NoError(t, second.Model(&models.SocialAccount{}).Count(&count).Error)
	assert.Zero(t, count)
}
