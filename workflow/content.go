package workflow

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"content-studio/helpers"
	"content-studio/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxTitleLength  = 200
)

// Statuses each restricted role may list. Roles missing here see everything.
var visibleStatuses = map[models.Role][]models.ContentStatus{
	models.RoleVideoEditor: {
		models.StatusWaitingForEditor, models.StatusEdited, models.StatusReview,
		models.StatusRevision, models.StatusApproved, models.StatusScheduled, models.StatusPublished,
	},
	models.RoleSocialMediaManager: {
		models.StatusEdited, models.StatusReview, models.StatusRevision,
		models.StatusApproved, models.StatusScheduled, models.StatusPublished,
	},
}

type CreateInput struct {
	Title           string               `json:"title"`
	Script          string               `json:"script"`
	Caption         string               `json:"caption"`
	Note            string               `json:"note"`
	Label           string               `json:"label"`
	AssignedEditor  *string              `json:"assignedEditor"`
	AssignedManager *string              `json:"assignedManager"`
	Status          models.ContentStatus `json:"status"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title           *string `json:"title"`
	Script          *string `json:"script"`
	Caption         *string `json:"caption"`
	Note            *string `json:"note"`
	Label           *string `json:"label"`
	AssignedEditor  *string `json:"assignedEditor"`
	AssignedManager *string `json:"assignedManager"`
}

func (u UpdateInput) touchesDetails() bool {
	return u.Title != nil || u.Script != nil || u.Caption != nil || u.Note != nil || u.Label != nil
}

type ListFilter struct {
	Status       models.ContentStatus
	AssignedToMe bool
	Page         int
	Limit        int
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type ListResult struct {
	Content    []models.ContentItem `json:"content"`
	Pagination Pagination           `json:"pagination"`
}

type FileInput struct {
	FileName          string `json:"fileName"`
	FileURL           string `json:"fileUrl"`
	FileType          string `json:"fileType"`
	FileSize          int64  `json:"fileSize"`
	IsEditingMaterial bool   `json:"isEditingMaterial"`
}

type DashboardStats struct {
	TotalContent     int64 `json:"totalContent"`
	PublishedContent int64 `json:"publishedContent"`
	EditingContent   int64 `json:"editingContent"`
	ScheduledContent int64 `json:"scheduledContent"`
	ApprovedContent  int64 `json:"approvedContent"`
	DraftContent     int64 `json:"draftContent"`
}

func (e *Engine) Create(ctx context.Context, actor Actor, input CreateInput) (*models.ContentItem, error) {
	title := strings.TrimSpace(input.Title)
	switch {
	case title == "":
		return nil, helpers.Validation("title is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		return nil, helpers.Validation("title too long")
	case strings.TrimSpace(input.Script) == "":
		return nil, helpers.Validation("script is required")
	case strings.TrimSpace(input.Caption) == "":
		return nil, helpers.Validation("caption is required")
	}

	status := input.Status
	if status == "" {
		status = models.StatusWaitingForEditor
	}
	if status != models.StatusDraft && status != models.StatusWaitingForEditor {
		return nil, helpers.Validation("new content must start as draft or waiting_for_editor")
	}

	item := &models.ContentItem{
		WorkspaceID:     actor.WorkspaceID,
		Title:           title,
		Script:          input.Script,
		Caption:         input.Caption,
		Note:            input.Note,
		Label:           input.Label,
		Status:          status,
		CreatedBy:       actor.UserID,
		AssignedEditor:  emptyToNil(input.AssignedEditor),
		AssignedManager: emptyToNil(input.AssignedManager),
	}
	if err := e.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, helpers.Internal(err, "create content")
	}

	e.logger.Info("Content created", "content_id", item.ID, "workspace_id", item.WorkspaceID, "status", item.Status)
	return item, nil
}

// Update edits an item. Only the creator or an owner may change its details;
// any member may change assignments.
func (e *Engine) Update(ctx context.Context, actor Actor, contentID string, input UpdateInput) (*models.ContentItem, error) {
	item, err := e.find(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}
	if input.touchesDetails() && item.CreatedBy != actor.UserID && actor.Role != models.RoleOwner {
		return nil, helpers.AccessDenied("only the content creator or workspace owner can edit content details")
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
			return nil, helpers.Validation("title must be between 1 and %d characters", maxTitleLength)
		}
		updates["title"] = title
	}
	if input.Script != nil {
		updates["script"] = *input.Script
	}
	if input.Caption != nil {
		updates["caption"] = *input.Caption
	}
	if input.Note != nil {
		updates["note"] = *input.Note
	}
	if input.Label != nil {
		updates["label"] = *input.Label
	}
	if input.AssignedEditor != nil {
		updates["assigned_editor"] = emptyToNil(input.AssignedEditor)
	}
	if input.AssignedManager != nil {
		updates["assigned_manager"] = emptyToNil(input.AssignedManager)
	}
	if len(updates) == 0 {
		return item, nil
	}
	updates["updated_at"] = e.now()

	if err := e.db.WithContext(ctx).Model(&models.ContentItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
		return nil, helpers.Internal(err, "update content")
	}
	return e.find(ctx, actor, contentID)
}

// Get returns an item with its files, comments and status history.
func (e *Engine) Get(ctx context.Context, actor Actor, contentID string) (*models.ContentItem, error) {
	var item models.ContentItem
	err := e.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ? AND workspace_id = ?", contentID, actor.WorkspaceID).
		Take(&item).Error
	if err != nil {
		return nil, notFoundOr(err, contentID, "load content")
	}
	return &item, nil
}

// List returns the workspace's content newest first, hiding statuses the
// actor's role does not work on.
func (e *Engine) List(ctx context.Context, actor Actor, filter ListFilter) (*ListResult, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, helpers.Validation("invalid status %q", filter.Status)
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	query := e.db.WithContext(ctx).Model(&models.ContentItem{}).Where("workspace_id = ?", actor.WorkspaceID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AssignedToMe {
		query = query.Where("(assigned_editor = ? OR assigned_manager = ? OR created_by = ?)", actor.UserID, actor.UserID, actor.UserID)
	}
	if statuses, ok := visibleStatuses[actor.Role]; ok {
		query = query.Where("status IN ?", statuses)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, helpers.Internal(err, "count content")
	}

	items := []models.ContentItem{}
	err := query.
		Preload("Files").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, helpers.Internal(err, "list content")
	}

	return &ListResult{
		Content: items,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

func (e *Engine) AddFiles(ctx context.Context, actor Actor, contentID string, files []FileInput) ([]models.ContentFile, error) {
	if len(files) == 0 {
		return nil, helpers.Validation("no files provided")
	}
	item, err := e.find(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}

	rows := make([]models.ContentFile, 0, len(files))
	for _, f := range files {
		if strings.TrimSpace(f.FileURL) == "" || strings.TrimSpace(f.FileName) == "" {
			return nil, helpers.Validation("file name and url are required")
		}
		rows = append(rows, models.ContentFile{
			ContentID:         item.ID,
			FileURL:           f.FileURL,
			FileName:          f.FileName,
			FileType:          helpers.MimeType(f.FileType, f.FileURL),
			FileSize:          f.FileSize,
			IsEditingMaterial: f.IsEditingMaterial,
		})
	}
	if err := e.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, helpers.Internal(err, "add content files")
	}
	return rows, nil
}

func (e *Engine) AddComment(ctx context.Context, actor Actor, contentID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, helpers.Validation("comment is required")
	}
	item, err := e.find(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}
	comment := &models.Comment{ContentID: item.ID, UserID: actor.UserID, Comment: text}
	if err := e.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, helpers.Internal(err, "add comment")
	}
	return comment, nil
}

func (e *Engine) Comments(ctx context.Context, actor Actor, contentID string) ([]models.Comment, error) {
	item, err := e.find(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}
	comments := []models.Comment{}
	if err := e.db.WithContext(ctx).Where("content_id = ?", item.ID).Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, helpers.Internal(err, "list comments")
	}
	return comments, nil
}

// Delete removes an item with its files, comments and history. Pending
// scheduled posts for it are failed in the same transaction.
func (e *Engine) Delete(ctx context.Context, actor Actor, contentID string) error {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.ContentItem
		if err := lockContent(tx, actor.WorkspaceID, contentID, &item); err != nil {
			return err
		}
		if item.CreatedBy != actor.UserID && actor.Role != models.RoleOwner && actor.Role != models.RoleSocialMediaManager {
			return helpers.AccessDenied("only the content creator, workspace owner or managers can delete content")
		}

		err := tx.Model(&models.ScheduledPost{}).
			Where("content_id = ? AND status = ?", item.ID, models.ScheduleScheduled).
			Updates(map[string]interface{}{
				"status":        models.ScheduleFailed,
				"error_message": "canceled: content deleted",
			}).Error
		if err != nil {
			return helpers.Internal(err, "cancel scheduled posts")
		}

		for _, model := range []interface{}{&models.ContentFile{}, &models.Comment{}, &models.StatusHistory{}} {
			if err := tx.Where("content_id = ?", item.ID).Delete(model).Error; err != nil {
				return helpers.Internal(err, "delete content children")
			}
		}
		if err := tx.Delete(&item).Error; err != nil {
			return helpers.Internal(err, "delete content")
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("Content deleted", "content_id", contentID, "actor", actor.UserID)
	return nil
}

func (e *Engine) DashboardStats(ctx context.Context, actor Actor) (*DashboardStats, error) {
	var rows []struct {
		Status models.ContentStatus
		Count  int64
	}
	err := e.db.WithContext(ctx).Model(&models.ContentItem{}).
		Select("status, COUNT(*) AS count").
		Where("workspace_id = ?", actor.WorkspaceID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, helpers.Internal(err, "count content by status")
	}

	stats := &DashboardStats{}
	for _, row := range rows {
		stats.TotalContent += row.Count
		switch row.Status {
		case models.StatusPublished:
			stats.PublishedContent += row.Count
		case models.StatusWaitingForEditor, models.StatusEdited, models.StatusReview, models.StatusRevision:
			stats.EditingContent += row.Count
		case models.StatusScheduled:
			stats.ScheduledContent += row.Count
		case models.StatusApproved:
			stats.ApprovedContent += row.Count
		case models.StatusDraft:
			stats.DraftContent += row.Count
		}
	}
	return stats, nil
}

// Publishable loads an item's publishable files for the publish path.
func (e *Engine) Publishable(ctx context.Context, actor Actor, contentID string) (*models.ContentItem, error) {
	var item models.ContentItem
	err := e.db.WithContext(ctx).
		Preload("Files", "is_editing_material = ?", false).
		Where("id = ? AND workspace_id = ?", contentID, actor.WorkspaceID).
		Take(&item).Error
	if err != nil {
		return nil, notFoundOr(err, contentID, "load content")
	}
	return &item, nil
}

func (e *Engine) find(ctx context.Context, actor Actor, contentID string) (*models.ContentItem, error) {
	var item models.ContentItem
	err := e.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", contentID, actor.WorkspaceID).
		Take(&item).Error
	if err != nil {
		return nil, notFoundOr(err, contentID, "load content")
	}
	return &item, nil
}

func notFoundOr(err error, contentID, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return helpers.NotFound("content %s not found", contentID)
	}
	return helpers.Internal(err, action)
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
