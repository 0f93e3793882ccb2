package schedule

import (
	"context"
	"log/slog"
	"time"

	"content-studio/config"
	"content-studio/helpers"
	"content-studio/metrics"
	"content-studio/models"
	"content-studio/publishing"
	"content-studio/storage"
	"content-studio/workflow"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const lockKey = "content-studio:scheduler:lock"

// MultiPublisher is the orchestrator as seen by the queue.
type MultiPublisher interface {
	PublishToMultiplePlatforms(ctx context.Context, workspaceID string, platforms []models.Platform, req models.PublishRequest) (*publishing.Summary, error)
}

// Queue persists future publish intents and drains them when due.
type Queue struct {
	db        *gorm.DB
	engine    *workflow.Engine
	publisher MultiPublisher
	files     storage.Store
	lock      Lock
	cfg       config.SchedulerConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewQueue(db *gorm.DB, engine *workflow.Engine, publisher MultiPublisher, files storage.Store, lock Lock, cfg config.SchedulerConfig, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = helpers.DiscardLogger()
	}
	if lock == nil {
		lock = NewLocalLock()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 5 * time.Minute
	}
	// A run must end before its lease expires.
	if cfg.RunTimeout <= 0 || cfg.RunTimeout >= cfg.LeaseTTL {
		cfg.RunTimeout = cfg.LeaseTTL * 4 / 5
	}
	return &Queue{db: db, engine: engine, publisher: publisher, files: files, lock: lock, cfg: cfg, logger: logger, now: time.Now}
}

func canSchedule(actor workflow.Actor) bool {
	return actor.Role == models.RoleOwner || actor.Role == models.RoleSocialMediaManager
}

// Schedule records one pending post per platform. A pending row for the same
// platform is moved to the new time. An approved item becomes scheduled in
// the same transaction.
func (q *Queue) Schedule(ctx context.Context, actor workflow.Actor, contentID string, platforms []models.Platform, at time.Time) ([]models.ScheduledPost, error) {
	if !at.After(q.now()) {
		return nil, helpers.Validation("scheduled time must be in the future")
	}
	if len(platforms) == 0 {
		return nil, helpers.Validation("at least one platform is required")
	}
	seen := make(map[models.Platform]bool, len(platforms))
	for _, p := range platforms {
		if !p.Valid() {
			return nil, helpers.Validation("unsupported platform %q", p)
		}
		if seen[p] {
			return nil, helpers.Validation("platform %s requested twice", p)
		}
		seen[p] = true
	}
	if !canSchedule(actor) {
		return nil, helpers.AccessDenied("only owners and social media managers can schedule posts")
	}

	at = at.UTC()
	posts := make([]models.ScheduledPost, 0, len(platforms))
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.ContentItem
		err := tx.Where("id = ? AND workspace_id = ?", contentID, actor.WorkspaceID).Take(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helpers.NotFound("content %s not found", contentID)
		}
		if err != nil {
			return helpers.Internal(err, "load content")
		}
		if item.Status != models.StatusApproved && item.Status != models.StatusScheduled {
			return helpers.NewError(helpers.KindForbiddenTransition, "content must be approved before it can be scheduled, current status is %s", item.Status).
				WithContext("from", string(item.Status)).
				WithContext("to", string(models.StatusScheduled))
		}

		for _, platform := range platforms {
			post, err := upsertPending(tx, contentID, platform, at)
			if err != nil {
				return err
			}
			posts = append(posts, *post)
		}

		if item.Status == models.StatusApproved {
			_, err := q.engine.WithTx(tx).TransitionStatus(ctx, actor, workflow.TransitionRequest{
				ContentID: contentID,
				Target:    models.StatusScheduled,
				Expected:  models.StatusApproved,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	q.logger.Info("Content scheduled", "content_id", contentID, "platforms", platforms, "scheduled_at", at)
	return posts, nil
}

func upsertPending(tx *gorm.DB, contentID string, platform models.Platform, at time.Time) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	err := tx.Where("content_id = ? AND platform = ? AND status = ?", contentID, platform, models.ScheduleScheduled).
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		post = models.ScheduledPost{ContentID: contentID, Platform: platform, ScheduledAt: at, Status: models.ScheduleScheduled}
		if err := tx.Create(&post).Error; err != nil {
			return nil, helpers.Internal(err, "create scheduled post")
		}
		return &post, nil
	}
	if err != nil {
		return nil, helpers.Internal(err, "load scheduled post")
	}
	if err := tx.Model(&post).Update("scheduled_at", at).Error; err != nil {
		return nil, helpers.Internal(err, "reschedule post")
	}
	return &post, nil
}

// Pending lists an item's scheduled posts, newest first.
func (q *Queue) Pending(ctx context.Context, actor workflow.Actor, contentID string) ([]models.ScheduledPost, error) {
	posts := []models.ScheduledPost{}
	err := q.db.WithContext(ctx).
		Joins("JOIN content_briefs ON content_briefs.id = scheduled_posts.content_id").
		Where("scheduled_posts.content_id = ? AND content_briefs.workspace_id = ?", contentID, actor.WorkspaceID).
		Order("scheduled_posts.scheduled_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, helpers.Internal(err, "list scheduled posts")
	}
	return posts, nil
}

// RunReport summarizes one drain.
type RunReport struct {
	Skipped          bool
	Due              int
	Published        int
	Failed           int
	ContentPublished int
}

// RunDue publishes every due post once. Only the lease holder drains.
func (q *Queue) RunDue(ctx context.Context, now time.Time) (*RunReport, error) {
	token := uuid.NewString()
	ok, err := q.lock.Acquire(ctx, lockKey, token, q.cfg.LeaseTTL)
	if err != nil {
		return nil, helpers.Internal(err, "acquire scheduler lease")
	}
	if !ok {
		q.logger.Debug("Scheduler lease held elsewhere, skipping run")
		return &RunReport{Skipped: true}, nil
	}
	defer func() {
		if err := q.lock.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			q.logger.Warn("Failed to release scheduler lease", "error", err.Error())
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, q.cfg.RunTimeout)
	defer cancel()

	var due []models.ScheduledPost
	err = q.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.ScheduleScheduled, now.UTC()).
		Order("scheduled_at ASC").
		Limit(q.cfg.BatchSize).
		Find(&due).Error
	if err != nil {
		return nil, helpers.Internal(err, "load due posts")
	}

	report := &RunReport{Due: len(due)}
	if len(due) == 0 {
		return report, nil
	}
	q.logger.Info("Publishing scheduled posts", "due", len(due))

	order := []string{}
	groups := map[string][]models.ScheduledPost{}
	for _, post := range due {
		if _, ok := groups[post.ContentID]; !ok {
			order = append(order, post.ContentID)
		}
		groups[post.ContentID] = append(groups[post.ContentID], post)
	}

	for _, contentID := range order {
		q.runContent(ctx, contentID, groups[contentID], report)
	}

	q.logger.Info("Scheduled run finished", "due", report.Due, "published", report.Published, "failed", report.Failed, "content_published", report.ContentPublished)
	return report, nil
}

func (q *Queue) runContent(ctx context.Context, contentID string, posts []models.ScheduledPost, report *RunReport) {
	var item models.ContentItem
	err := q.db.WithContext(ctx).Preload("Files").Where("id = ?", contentID).Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = helpers.NotFound("content %s no longer exists", contentID)
		}
		q.failAll(ctx, posts, err, report)
		return
	}

	req, err := publishing.BuildRequest(ctx, q.files, &item, "", "")
	if err != nil {
		q.failAll(ctx, posts, err, report)
		return
	}

	platforms := make([]models.Platform, len(posts))
	for i, p := range posts {
		platforms[i] = p.Platform
	}
	summary, err := q.publisher.PublishToMultiplePlatforms(ctx, item.WorkspaceID, platforms, req)
	if err != nil {
		q.failAll(ctx, posts, err, report)
		return
	}

	for i, result := range summary.Results {
		if result.Success {
			q.finish(ctx, posts[i], models.SchedulePublished, result.PostID, "", report)
		} else {
			q.finish(ctx, posts[i], models.ScheduleFailed, "", result.Error, report)
		}
	}

	q.completeContent(ctx, &item, report)
}

// completeContent publishes the item once every platform it was scheduled for
// has a published post and nothing is pending. A failed post that a later
// attempt published does not hold the item back.
func (q *Queue) completeContent(ctx context.Context, item *models.ContentItem, report *RunReport) {
	if item.Status == models.StatusPublished {
		return
	}
	var rows []models.ScheduledPost
	err := q.db.WithContext(ctx).Select("platform", "status").
		Where("content_id = ?", item.ID).
		Find(&rows).Error
	if err != nil {
		q.logger.Error("Failed to load scheduled posts", "content_id", item.ID, "error", err.Error())
		return
	}
	if len(openPlatforms(rows)) > 0 {
		return
	}

	_, err = q.engine.TransitionStatus(ctx, workflow.SystemActor(item.WorkspaceID), workflow.TransitionRequest{
		ContentID: item.ID,
		Target:    models.StatusPublished,
		Expected:  item.Status,
	})
	if err != nil {
		q.logger.Error("Failed to mark scheduled content published", append([]any{"content_id", item.ID}, helpers.LogAttrs(err)...)...)
		return
	}
	report.ContentPublished++
}

// openPlatforms lists platforms with a pending post or without any published one.
func openPlatforms(rows []models.ScheduledPost) []models.Platform {
	published := make(map[models.Platform]bool)
	pending := make(map[models.Platform]bool)
	for _, row := range rows {
		switch row.Status {
		case models.SchedulePublished:
			published[row.Platform] = true
		case models.ScheduleScheduled:
			pending[row.Platform] = true
		}
	}
	var open []models.Platform
	seen := make(map[models.Platform]bool)
	for _, row := range rows {
		p := row.Platform
		if seen[p] {
			continue
		}
		seen[p] = true
		if pending[p] || !published[p] {
			open = append(open, p)
		}
	}
	return open
}

func (q *Queue) failAll(ctx context.Context, posts []models.ScheduledPost, cause error, report *RunReport) {
	msg := cause.Error()
	if appErr, ok := helpers.AsAppError(cause); ok && appErr.Message != "" {
		msg = appErr.Message
	}
	for _, post := range posts {
		q.finish(ctx, post, models.ScheduleFailed, "", msg, report)
	}
}

// finish writes a terminal status. Rows that already left "scheduled" are
// not touched again.
func (q *Queue) finish(ctx context.Context, post models.ScheduledPost, status models.ScheduleStatus, postID, errMsg string, report *RunReport) {
	updates := map[string]interface{}{"status": status, "updated_at": q.now()}
	if status == models.SchedulePublished {
		updates["post_id"] = postID
		updates["published_at"] = q.now()
	} else {
		updates["error_message"] = errMsg
	}

	// The run context may be spent by now; the outcome still has to land.
	res := q.db.WithContext(context.WithoutCancel(ctx)).Model(&models.ScheduledPost{}).
		Where("id = ? AND status = ?", post.ID, models.ScheduleScheduled).
		Updates(updates)
	if res.Error != nil {
		q.logger.Error("Failed to record scheduled post outcome", "scheduled_post_id", post.ID, "error", res.Error.Error())
		return
	}
	if res.RowsAffected == 0 {
		return
	}

	metrics.ScheduledPostsProcessed.WithLabelValues(string(post.Platform), string(status)).Inc()
	if status == models.SchedulePublished {
		report.Published++
		q.logger.Info("Scheduled post published", "scheduled_post_id", post.ID, "platform", post.Platform, "post_id", postID)
	} else {
		report.Failed++
		q.logger.Error("Scheduled post failed", "scheduled_post_id", post.ID, "platform", post.Platform, "error", errMsg)
	}
}
