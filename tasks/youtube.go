package tasks

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"content-studio/config"
	"content-studio/helpers"
	"content-studio/models"
	"content-studio/storage"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const youtubeTitleLimit = 100

// YouTube uploads videos through the Data API's resumable upload. Bytes are
// streamed from the file store one chunk at a time.
type YouTube struct {
	cfg    config.YouTubeConfig
	files  storage.Store
	client *http.Client
	logger *slog.Logger
}

func NewYouTube(cfg config.YouTubeConfig, files storage.Store, client *http.Client, logger *slog.Logger) *YouTube {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 8 * 1024 * 1024
	}
	if cfg.CategoryID == "" {
		cfg.CategoryID = "22"
	}
	return &YouTube{cfg: cfg, files: files, client: client, logger: loggerOrDiscard(logger)}
}

func (y *YouTube) Platform() models.Platform { return models.PlatformYouTube }

// metadata builds the video resource for req.
func (y *YouTube) metadata(req models.PublishRequest, caption string) *youtube.Video {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = caption
	}
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       helpers.Truncate(title, youtubeTitleLimit),
			Description: caption,
			Tags:        helpers.ExtractHashtags(caption),
			CategoryId:  y.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           "public",
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
}

func (y *YouTube) Publish(ctx context.Context, account *models.SocialAccount, req models.PublishRequest) (string, error) {
	caption, err := requireCaption(models.PlatformYouTube, req)
	if err != nil {
		return "", err
	}
	video, ok := firstVideo(req)
	if !ok {
		return "", helpers.Validation("YouTube requires a video file").WithPlatform(string(models.PlatformYouTube))
	}

	body, size, err := y.files.Fetch(ctx, video.FileURL)
	if err != nil {
		return "", err
	}
	defer body.Close()
	if size < 0 {
		size = video.Size
	}

	y.logger.Info("YouTube upload started", "account_id", account.ID, "file", video.FileName, "size", size)

	service, err := y.service(ctx, account)
	if err != nil {
		FailedPost(y.logger, models.PlatformYouTube, account.ID, err)
		return "", err
	}

	uploaded, err := service.Videos.Insert([]string{"snippet", "status"}, y.metadata(req, caption)).
		Media(body, googleapi.ChunkSize(int(y.cfg.ChunkSize)), googleapi.ContentType(helpers.MimeType(video.MimeType, video.FileName))).
		ProgressUpdater(func(current, total int64) {
			y.logger.Debug("YouTube chunk", "sent", current, "size", size)
		}).
		Context(ctx).
		Do()
	if err != nil {
		err = youtubeError(err)
		FailedPost(y.logger, models.PlatformYouTube, account.ID, err)
		return "", err
	}
	if uploaded.Id == "" {
		err := helpers.NewError(helpers.KindUpstreamPermanent, "upload finished without a video id").WithPlatform(string(models.PlatformYouTube))
		FailedPost(y.logger, models.PlatformYouTube, account.ID, err)
		return "", err
	}

	SuccessPost(y.logger, models.PlatformYouTube, account.ID, uploaded.Id)
	return uploaded.Id, nil
}

// service builds a Data API client that sends the account's bearer token.
func (y *YouTube) service(ctx context.Context, account *models.SocialAccount) (*youtube.Service, error) {
	if y.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, y.client)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: account.AccessToken, TokenType: "Bearer"}))
	if y.client != nil {
		client.Timeout = y.client.Timeout
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if y.cfg.APIURL != "" {
		opts = append(opts, option.WithEndpoint(y.cfg.APIURL))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, helpers.Internal(err, "create YouTube client")
	}
	return service, nil
}

// youtubeError maps a Data API failure onto the error taxonomy, keeping the
// first reason as the error code.
func youtubeError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return helpers.UpstreamError(string(models.PlatformYouTube), err, "video upload failed")
	}

	httpErr := &helpers.HTTPError{StatusCode: apiErr.Code, Status: http.StatusText(apiErr.Code), Body: []byte(apiErr.Body)}
	appErr := helpers.UpstreamError(string(models.PlatformYouTube), httpErr, "video upload failed")
	if apiErr.Message != "" {
		appErr.Message = apiErr.Message
	}
	if len(apiErr.Errors) > 0 {
		appErr.Code = apiErr.Errors[0].Reason
	}
	switch {
	case apiErr.Code == http.StatusUnauthorized:
		appErr.Kind = helpers.KindTokenExpired
	case appErr.Code == "rateLimitExceeded" || appErr.Code == "userRateLimitExceeded":
		appErr.Kind = helpers.KindUpstreamTransient
	}
	return appErr
}
