package controllers

import (
	"context"
	"time"

	"content-studio/helpers"
)

// PublishScheduledPosts drains the scheduling queue. It runs from cron.
func PublishScheduledPosts(deps *Deps) {
	report, err := deps.Queue.RunDue(context.Background(), time.Now())
	if err != nil {
		deps.Logger.Error("Failed to publish scheduled posts", helpers.LogAttrs(err)...)
		return
	}
	if report.Skipped || report.Due == 0 {
		return
	}
	deps.Logger.Info("Scheduled posts processed",
		"due", report.Due,
		"published", report.Published,
		"failed", report.Failed,
		"content_published", report.ContentPublished,
	)
}
