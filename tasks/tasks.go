package tasks

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"content-studio/config"
	"content-studio/helpers"
	"content-studio/models"
	"content-studio/storage"
)

// Publisher posts one request to one connected account. Failures are
// returned as *helpers.AppError so callers can tell platform problems apart.
type Publisher interface {
	Platform() models.Platform
	Publish(ctx context.Context, account *models.SocialAccount, req models.PublishRequest) (string, error)
}

// Registry maps platforms to their publisher.
type Registry map[models.Platform]Publisher

func NewRegistry(publishers ...Publisher) Registry {
	r := make(Registry, len(publishers))
	for _, p := range publishers {
		r[p.Platform()] = p
	}
	return r
}

func (r Registry) Get(platform models.Platform) (Publisher, bool) {
	p, ok := r[platform]
	return p, ok
}

// DefaultRegistry wires the four platform publishers from cfg.
func DefaultRegistry(cfg *config.Config, files storage.Store, logger *slog.Logger) Registry {
	return NewRegistry(
		NewFacebook(cfg.Facebook, httpClient(cfg.Facebook.Timeout), logger),
		NewInstagram(cfg.Instagram, httpClient(cfg.Instagram.Timeout), logger),
		NewYouTube(cfg.YouTube, files, httpClient(cfg.YouTube.Timeout), logger),
		NewTikTok(cfg.TikTok, httpClient(cfg.TikTok.Timeout), logger),
	)
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return helpers.DiscardLogger()
	}
	return logger
}

func requireCaption(platform models.Platform, req models.PublishRequest) (string, error) {
	caption := strings.TrimSpace(req.Caption)
	if caption == "" {
		return "", helpers.Validation("caption is required").WithPlatform(string(platform))
	}
	return caption, nil
}

// firstVideo returns the first video among the request's media.
func firstVideo(req models.PublishRequest) (models.MediaFile, bool) {
	for _, f := range req.MediaFiles {
		if helpers.IsVideo(f.MimeType) {
			return f, true
		}
	}
	return models.MediaFile{}, false
}

func mediaURL(f models.MediaFile) string {
	if f.PublicURL != "" {
		return f.PublicURL
	}
	return f.FileURL
}

func FailedPost(logger *slog.Logger, platform models.Platform, accountID string, err error) {
	logger.Error("Failed to post on "+string(platform), append([]any{"type", "posting", "account_id", accountID}, helpers.LogAttrs(err)...)...)
}

func SuccessPost(logger *slog.Logger, platform models.Platform, accountID string, publishedPostID string) {
	logger.Info("Successfully posted on "+string(platform), "type", "posting", "platform", platform, "account_id", accountID, "published_post_id", publishedPostID)
}
