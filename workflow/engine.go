package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"content-studio/helpers"
	"content-studio/metrics"
	"content-studio/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Engine owns every mutation of a content item's status.
type Engine struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(db *gorm.DB, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = helpers.DiscardLogger()
	}
	return &Engine{db: db, logger: logger, now: time.Now}
}

// WithTx returns an engine whose operations run inside tx.
func (e *Engine) WithTx(tx *gorm.DB) *Engine {
	c := *e
	c.db = tx
	return &c
}

// TransitionRequest asks to move ContentID to Target. When Expected is set the
// transition only applies if the freshly read status still equals it.
type TransitionRequest struct {
	ContentID string
	Target    models.ContentStatus
	Expected  models.ContentStatus
	Feedback  string
}

// TransitionStatus validates and applies one status change. The status update,
// the history row and the optional feedback comment commit together or not at all.
func (e *Engine) TransitionStatus(ctx context.Context, actor Actor, req TransitionRequest) (*models.ContentItem, error) {
	if !req.Target.Valid() {
		return nil, helpers.Validation("invalid status %q", req.Target)
	}
	if req.Expected != "" && !req.Expected.Valid() {
		return nil, helpers.Validation("invalid expected status %q", req.Expected)
	}

	var item models.ContentItem
	var from models.ContentStatus
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockContent(tx, actor.WorkspaceID, req.ContentID, &item); err != nil {
			return err
		}
		from = item.Status

		if req.Expected != "" && req.Expected != from {
			return staleStatus(req.Expected, from)
		}
		if !CanTransition(&item, actor, req.Target) {
			return helpers.NewError(helpers.KindForbiddenTransition,
				"cannot transition from %s to %s with role %s", from, req.Target, actor.Role).
				WithContext("from", string(from)).
				WithContext("to", string(req.Target)).
				WithContext("role", string(actor.Role))
		}

		now := e.now()
		res := tx.Model(&models.ContentItem{}).
			Where("id = ? AND status = ?", item.ID, from).
			Updates(map[string]interface{}{"status": req.Target, "updated_at": now})
		if res.Error != nil {
			return helpers.Internal(res.Error, "update content status")
		}
		if res.RowsAffected == 0 {
			return staleStatus(from, "")
		}

		history := models.StatusHistory{
			ContentID: item.ID,
			OldStatus: from,
			NewStatus: req.Target,
			ChangedBy: actor.UserID,
			Feedback:  strings.TrimSpace(req.Feedback),
		}
		if err := tx.Create(&history).Error; err != nil {
			return helpers.Internal(err, "append status history")
		}
		if history.Feedback != "" {
			comment := models.Comment{ContentID: item.ID, UserID: actor.UserID, Comment: history.Feedback}
			if err := tx.Create(&comment).Error; err != nil {
				return helpers.Internal(err, "append feedback comment")
			}
		}

		item.Status = req.Target
		item.UpdatedAt = now
		return nil
	})
	if err != nil {
		metrics.RecordTransition(string(from), string(req.Target), string(helpers.KindOf(err)))
		if helpers.KindOf(err) == helpers.KindInternal {
			e.logger.Error("Status transition failed", append(helpers.LogAttrs(err), "content_id", req.ContentID)...)
		}
		return nil, err
	}

	metrics.RecordTransition(string(from), string(req.Target), "ok")
	e.logger.Info("Content status changed", "content_id", item.ID, "from", from, "to", item.Status, "actor", actor.UserID)
	return &item, nil
}

// lockContent reads the item for update inside tx. Items of other workspaces
// are reported as missing.
func lockContent(tx *gorm.DB, workspaceID, contentID string, item *models.ContentItem) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND workspace_id = ?", contentID, workspaceID).
		First(item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return helpers.NotFound("content %s not found", contentID)
	}
	if err != nil {
		return helpers.Internal(err, "load content")
	}
	return nil
}

func staleStatus(expected, current models.ContentStatus) error {
	appErr := helpers.NewError(helpers.KindStaleStatus, "content status changed concurrently, reload and retry").
		WithContext("expected", string(expected))
	if current != "" {
		appErr.WithContext("current", string(current))
	}
	return appErr
}
