package publishing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"content-studio/helpers"
	"content-studio/metrics"
	"content-studio/models"
	"content-studio/tasks"
)

// AccountSource hands out accounts whose tokens may be used right now.
type AccountSource interface {
	GetValidToken(ctx context.Context, workspaceID string, platform models.Platform) (*models.SocialAccount, error)
}

// Orchestrator fans one request out to several platforms. Each platform
// runs in its own goroutine and its failure never affects the others.
type Orchestrator struct {
	accounts   AccountSource
	publishers tasks.Registry
	logger     *slog.Logger
}

func NewOrchestrator(accounts AccountSource, publishers tasks.Registry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = helpers.DiscardLogger()
	}
	return &Orchestrator{accounts: accounts, publishers: publishers, logger: logger}
}

// Summary is the aggregated outcome. Results follow the requested order.
type Summary struct {
	Results      []models.PublishResult `json:"results"`
	SuccessCount int                    `json:"successful"`
	FailureCount int                    `json:"failed"`
}

func (s *Summary) AllSucceeded() bool {
	return s.FailureCount == 0
}

// Message renders "Published to X/Y platform(s)".
func (s *Summary) Message() string {
	return fmt.Sprintf("Published to %d/%d platform(s)", s.SuccessCount, len(s.Results))
}

// PublishToMultiplePlatforms publishes req to every platform. It only
// returns an error for a malformed request; platform failures are reported
// in the summary.
func (o *Orchestrator) PublishToMultiplePlatforms(ctx context.Context, workspaceID string, platforms []models.Platform, req models.PublishRequest) (*Summary, error) {
	req.Caption = strings.TrimSpace(req.Caption)
	if req.Caption == "" {
		return nil, helpers.Validation("caption is required")
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

	o.logger.Info("Publishing content", "workspace_id", workspaceID, "platforms", platforms, "media", len(req.MediaFiles))

	results := make([]models.PublishResult, len(platforms))
	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = o.publishOne(ctx, workspaceID, platform, req)
		}()
	}
	wg.Wait()

	summary := &Summary{Results: results}
	for _, r := range results {
		if r.Success {
			summary.SuccessCount++
		} else {
			summary.FailureCount++
		}
	}
	o.logger.Info("Publish finished", "workspace_id", workspaceID, "successful", summary.SuccessCount, "failed", summary.FailureCount)
	return summary, nil
}

func (o *Orchestrator) publishOne(ctx context.Context, workspaceID string, platform models.Platform, req models.PublishRequest) (result models.PublishResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := helpers.NewError(helpers.KindInternal, "%s publisher panicked: %v", platform, r).WithPlatform(string(platform))
			result = failure(platform, err)
		}
		metrics.RecordPublish(string(platform), result.Success, time.Since(start))
		if !result.Success {
			o.logger.Error("Platform publish failed", append([]any{"workspace_id", workspaceID}, helpers.LogAttrs(result.Err)...)...)
		}
	}()

	publisher, ok := o.publishers.Get(platform)
	if !ok {
		return failure(platform, helpers.Validation("publishing to %s is not configured", platform).WithPlatform(string(platform)))
	}

	// Expired tokens are rejected here; nothing is sent with them.
	account, err := o.accounts.GetValidToken(ctx, workspaceID, platform)
	if err != nil {
		return failure(platform, err)
	}

	postID, err := publisher.Publish(ctx, account, req)
	if err != nil {
		return failure(platform, err)
	}
	return models.PublishResult{Platform: platform, Success: true, PostID: postID}
}

func failure(platform models.Platform, err error) models.PublishResult {
	result := models.PublishResult{
		Platform:  platform,
		Error:     err.Error(),
		ErrorKind: string(helpers.KindOf(err)),
		ErrorCode: helpers.CodeOf(err),
		Err:       err,
	}
	if appErr, ok := helpers.AsAppError(err); ok && appErr.Message != "" {
		result.Error = appErr.Message
	}
	return result
}
