package workflow

import (
	"context"
	"testing"
	"time"

	"content-studio/helpers"
	"content-studio/models"
	"content-studio/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateValidatesInput(t *testing.T) {
	engine, db, ws := newEngine(t)
	writer := actorFor(t, db, ws, models.RoleScriptWriter)

	cases := map[string]CreateInput{
		"missing title":   {Script: "s", Caption: "c"},
		"missing script":  {Title: "t", Caption: "c"},
		"missing caption": {Title: "t", Script: "s"},
		"bad status":      {Title: "t", Script: "s", Caption: "c", Status: models.StatusApproved},
	}
	for name, input := range cases {
		_, err := engine.Create(context.Background(), writer, input)
		assert.Equal(t, helpers.KindValidation, helpers.KindOf(err), name)
	}

	item, err := engine.Create(context.Background(), writer, CreateInput{Title: "t", Script: "s", Caption: "c", AssignedEditor: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingForEditor, item.Status)
	assert.Nil(t, item.AssignedEditor)
	assert.Equal(t, writer.UserID, item.CreatedBy)
}

func TestUpdateDetailsRequireCreatorOrOwner(t *testing.T) {
	engine, db, ws := newEngine(t)
	ctx := context.Background()
	writer := actorFor(t, db, ws, models.RoleScriptWriter)
	editor := actorFor(t, db, ws, models.RoleVideoEditor)
	item := testutil.CreateContent(t, db, ws, writer.UserID, models.StatusDraft)

	_, err := engine.Update(ctx, editor, item.ID, UpdateInput{Title: strPtr("Hijacked")})
	assert.Equal(t, helpers.KindAccessDenied, helpers.KindOf(err))

	updated, err := engine.Update(ctx, editor, item.ID, UpdateInput{AssignedEditor: strPtr(editor.UserID)})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedEditor)
	assert.Equal(t, editor.UserID, *updated.AssignedEditor)

	updated, err = engine.Update(ctx, writer, item.ID, UpdateInput{Title: strPtr("Renamed"), Label: strPtr("promo")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "promo", updated.Label)
}

func TestListAppliesRoleFilterAndPagination(t *testing.T) {
	engine, db, ws := newEngine(t)
	ctx := context.Background()
	owner := actorFor(t, db, ws, models.RoleOwner)
	editor := actorFor(t, db, ws, models.RoleVideoEditor)
	manager := actorFor(t, db, ws, models.RoleSocialMediaManager)

	for _, status := range models.AllStatuses {
		testutil.CreateContent(t, db, ws, owner.UserID, status)
	}
	testutil.CreateContent(t, db, uuid.NewString(), owner.UserID, models.StatusDraft)

	all, err := engine.List(ctx, owner, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(8), all.Pagination.Total)
	assert.Equal(t, 20, all.Pagination.Limit)

	forEditor, err := engine.List(ctx, editor, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), forEditor.Pagination.Total)
	for _, item := range forEditor.Content {
		assert.NotEqual(t, models.StatusDraft, item.Status)
	}

	forManager, err := engine.List(ctx, manager, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), forManager.Pagination.Total)
	for _, item := range forManager.Content {
		assert.NotContains(t, []models.ContentStatus{models.StatusDraft, models.StatusWaitingForEditor}, item.Status)
	}

	page, err := engine.List(ctx, owner, ListFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Content, 3)
	assert.Equal(t, 3, page.Pagination.TotalPages)

	drafts, err := engine.List(ctx, manager, ListFilter{Status: models.StatusDraft})
	require.NoError(t, err)
	assert.Empty(t, drafts.Content)

	mine, err := engine.List(ctx, editor, ListFilter{AssignedToMe: true})
	require.NoError(t, err)
	assert.Empty(t, mine.Content)
}

func TestGetIncludesFilesCommentsAndHistory(t *testing.T) {
	engine, db, ws := newEngine(t)
	ctx := context.Background()
	writer := actorFor(t, db, ws, models.RoleScriptWriter)
	item := testutil.CreateContent(t, db, ws, writer.UserID, models.StatusDraft)

	files, err := engine.AddFiles(ctx, writer, item.ID, []FileInput{
		{FileName: "cut.mp4", FileURL: "/uploads/ws/cut.mp4", FileSize: 1024},
		{FileName: "raw.mov", FileURL: "/uploads/ws/raw.mov", FileType: "video/quicktime", IsEditingMaterial: true},
	})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "video/mp4", files[0].FileType)

	_, err = engine.AddComment(ctx, writer, item.ID, "first pass ready")
	require.NoError(t, err)
	_, err = engine.TransitionStatus(ctx, writer, TransitionRequest{ContentID: item.ID, Target: models.StatusWaitingForEditor})
	require.NoError(t, err)

	loaded, err := engine.Get(ctx, writer, item.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Files, 2)
	assert.Len(t, loaded.Comments, 1)
	assert.Len(t, loaded.History, 1)
	assert.Len(t, loaded.PublishableFiles(), 1)

	publishable, err := engine.Publishable(ctx, writer, item.ID)
	require.NoError(t, err)
	require.Len(t, publishable.Files, 1)
	assert.Equal(t, "cut.mp4", publishable.Files[0].FileName)

	comments, err := engine.Comments(ctx, writer, item.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	_, err = engine.AddComment(ctx, writer, item.ID, "   ")
	assert.Equal(t, helpers.KindValidation, helpers.KindOf(err))
}

func TestDeleteCancelsPendingScheduledPosts(t *testing.T) {
	engine, db, ws := newEngine(t)
	ctx := context.Background()
	writer := actorFor(t, db, ws, models.RoleScriptWriter)
	editor := actorFor(t, db, ws, models.RoleVideoEditor)
	item := testutil.CreateContent(t, db, ws, writer.UserID, models.StatusScheduled)

	pending := models.ScheduledPost{ContentID: item.ID, Platform: models.PlatformFacebook, ScheduledAt: time.Now().Add(time.Hour), Status: models.ScheduleScheduled}
	done := models.ScheduledPost{ContentID: item.ID, Platform: models.PlatformYouTube, ScheduledAt: time.Now().Add(-time.Hour), Status: models.SchedulePublished, PostID: "yt-1"}
	require.NoError(t, db.Create(&pending).Error)
	require.NoError(t, db.Create(&done).Error)
	_, err := engine.AddComment(ctx, writer, item.ID, "note")
	require.NoError(t, err)

	err = engine.Delete(ctx, editor, item.ID)
	assert.Equal(t, helpers.KindAccessDenied, helpers.KindOf(err))

	require.NoError(t, engine.Delete(ctx, writer, item.ID))

	_, err = engine.Get(ctx, writer, item.ID)
	assert.Equal(t, helpers.KindNotFound, helpers.KindOf(err))

	var reloaded []models.ScheduledPost
	require.NoError(t, db.Where("content_id = ?", item.ID).Order("platform").Find(&reloaded).Error)
	require.Len(t, reloaded, 2)
	assert.Equal(t, models.ScheduleFailed, reloaded[0].Status)
	assert.Equal(t, "canceled: content deleted", reloaded[0].ErrorMessage)
	assert.Equal(t, models.SchedulePublished, reloaded[1].Status)

	var comments int64
	require.NoError(t, db.Model(&models.Comment{}).Where("content_id = ?", item.ID).Count(&comments).Error)
	assert.Zero(t, comments)
}

func TestDashboardStats(t *testing.T) {
	engine, db, ws := newEngine(t)
	owner := actorFor(t, db, ws, models.RoleOwner)
	for _, status := range []models.ContentStatus{
		models.StatusDraft, models.StatusEdited, models.StatusReview, models.StatusApproved,
		models.StatusScheduled, models.StatusPublished, models.StatusPublished,
	} {
		testutil.CreateContent(t, db, ws, owner.UserID, status)
	}

	stats, err := engine.DashboardStats(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, &DashboardStats{
		TotalContent:     7,
		PublishedContent: 2,
		EditingContent:   2,
		ScheduledContent: 1,
		ApprovedContent:  1,
		DraftContent:     1,
	}, stats)
}

func TestMembersActor(t *testing.T) {
	db := testutil.NewTestDB(t)
	ws := uuid.NewString()
	userID := testutil.AddMember(t, db, ws, models.RoleVideoEditor)
	members := NewMembers(db)

	actor, err := members.Actor(context.Background(), ws, userID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVideoEditor, actor.Role)

	_, err = members.RoleOf(context.Background(), uuid.NewString(), userID)
	assert.Equal(t, helpers.KindAccessDenied, helpers.KindOf(err))
}
