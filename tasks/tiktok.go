package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"content-studio/config"
	"content-studio/helpers"
	"content-studio/models"

	"github.com/pkg/errors"
)

const (
	tiktokDescriptionLimit = 2200
	tiktokTitleLimit       = 150

	tiktokStatusProcessing = "PROCESSING_UPLOAD"
	tiktokStatusComplete   = "PUBLISH_COMPLETE"
	tiktokStatusFailed     = "FAILED"
)

var tiktokPrivacyLevels = map[string]bool{
	"PUBLIC_TO_EVERYONE":    true,
	"MUTUAL_FOLLOW_FRIENDS": true,
	"SELF_ONLY":             true,
	"FOLLOWER_OF_CREATOR":   true,
}

type tiktokErrorRule struct {
	kind    helpers.ErrorKind
	message string
}

// tiktokErrors translates documented publish error codes. Unknown codes are
// permanent and keep the platform's message.
var tiktokErrors = map[string]tiktokErrorRule{
	"rate_limit_exceeded":                                {helpers.KindUpstreamTransient, "TikTok API rate limit exceeded, wait before retrying"},
	"spam_risk_too_many_posts":                           {helpers.KindUpstreamPermanent, "daily post limit reached for this user"},
	"spam_risk_user_banned_from_posting":                 {helpers.KindUpstreamPermanent, "user is banned from making new posts"},
	"spam_risk_too_many_pending_share":                   {helpers.KindUpstreamTransient, "too many pending uploads for this user"},
	"reached_active_user_cap":                            {helpers.KindUpstreamPermanent, "daily quota for active publishing users reached for this app"},
	"unaudited_client_can_only_post_to_private_accounts": {helpers.KindUpstreamPermanent, "unaudited clients can only post to private accounts"},
	"url_ownership_unverified":                           {helpers.KindUpstreamPermanent, "media URL domain is not verified for this TikTok app"},
	"privacy_level_option_mismatch":                      {helpers.KindUpstreamPermanent, "privacy level is not available for this creator"},
	"access_token_invalid":                               {helpers.KindTokenExpired, "TikTok access token is invalid or expired, reconnect the account"},
	"scope_not_authorized":                               {helpers.KindAccessDenied, "missing video.publish scope, reconnect the account"},
	"app_version_check_failed":                           {helpers.KindUpstreamPermanent, "the user's TikTok app version is too old"},
	"invalid_param":                                      {helpers.KindUpstreamPermanent, "invalid parameters"},
}

// VideoMetadata is the post_info block of a direct post.
type VideoMetadata struct {
	Title                 string `json:"title"`
	Description           string `json:"description"`
	PrivacyLevel          string `json:"privacy_level"`
	DisableDuet           bool   `json:"disable_duet"`
	DisableComment        bool   `json:"disable_comment"`
	DisableStitch         bool   `json:"disable_stitch"`
	VideoCoverTimestampMs int    `json:"video_cover_timestamp_ms"`
	BrandContentToggle    bool   `json:"brand_content_toggle"`
	BrandOrganicToggle    bool   `json:"brand_organic_toggle"`
	AutoAddMusic          bool   `json:"auto_add_music"`
}

type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateMetadata checks m locally before any request is made.
func ValidateMetadata(m VideoMetadata) ValidationResult {
	var errs []string
	if strings.TrimSpace(m.Description) == "" {
		errs = append(errs, "Description is required")
	}
	if utf8.RuneCountInString(m.Description) > tiktokDescriptionLimit {
		errs = append(errs, fmt.Sprintf("Description must be %d characters or less", tiktokDescriptionLimit))
	}
	if utf8.RuneCountInString(m.Title) > tiktokTitleLimit {
		errs = append(errs, fmt.Sprintf("Title must be %d characters or less", tiktokTitleLimit))
	}
	if !tiktokPrivacyLevels[m.PrivacyLevel] {
		errs = append(errs, "Invalid privacy level")
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// TikTok direct posts a video the platform pulls from its public URL, then
// polls the publish status.
type TikTok struct {
	cfg    config.TikTokConfig
	client *http.Client
	logger *slog.Logger
}

func NewTikTok(cfg config.TikTokConfig, client *http.Client, logger *slog.Logger) *TikTok {
	return &TikTok{cfg: cfg, client: client, logger: loggerOrDiscard(logger)}
}

func (t *TikTok) Platform() models.Platform { return models.PlatformTikTok }

type tiktokAPIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

type tiktokInitResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
	} `json:"data"`
	Error tiktokAPIError `json:"error"`
}

type tiktokStatusResponse struct {
	Data struct {
		Status     string        `json:"status"`
		FailReason string        `json:"fail_reason"`
		PostIDs    []json.Number `json:"publicaly_available_post_id"`
	} `json:"data"`
	Error tiktokAPIError `json:"error"`
}

type tiktokSourceInfo struct {
	Source   string `json:"source"`
	VideoURL string `json:"video_url"`
}

type tiktokInitRequest struct {
	PostInfo   VideoMetadata    `json:"post_info"`
	SourceInfo tiktokSourceInfo `json:"source_info"`
}

func (t *TikTok) Publish(ctx context.Context, account *models.SocialAccount, req models.PublishRequest) (string, error) {
	video, ok := firstVideo(req)
	if !ok {
		return "", helpers.Validation("TikTok requires a video file").WithPlatform(string(models.PlatformTikTok))
	}

	meta := VideoMetadata{
		Title:                 strings.TrimSpace(req.Title),
		Description:           strings.TrimSpace(req.Caption),
		PrivacyLevel:          "PUBLIC_TO_EVERYONE",
		VideoCoverTimestampMs: 1000,
	}
	if result := ValidateMetadata(meta); !result.Valid {
		return "", helpers.Validation("TikTok metadata validation failed: %s", strings.Join(result.Errors, ", ")).
			WithPlatform(string(models.PlatformTikTok))
	}

	t.logger.Info("Posting to TikTok", "account_id", account.ID, "file", video.FileName)

	publishID, err := t.initUpload(ctx, account, meta, mediaURL(video))
	if err != nil {
		FailedPost(t.logger, models.PlatformTikTok, account.ID, err)
		return "", err
	}

	postID, err := t.waitForPublish(ctx, account, publishID)
	if err != nil {
		FailedPost(t.logger, models.PlatformTikTok, account.ID, err)
		return "", err
	}

	SuccessPost(t.logger, models.PlatformTikTok, account.ID, postID)
	return postID, nil
}

func (t *TikTok) headers(account *models.SocialAccount) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + account.AccessToken,
		"Content-Type":  "application/json",
	}
}

func (t *TikTok) initUpload(ctx context.Context, account *models.SocialAccount, meta VideoMetadata, videoURL string) (string, error) {
	body := tiktokInitRequest{
		PostInfo:   meta,
		SourceInfo: tiktokSourceInfo{Source: "PULL_FROM_URL", VideoURL: videoURL},
	}
	endpoint := strings.TrimRight(t.cfg.BaseURL, "/") + "/v2/post/publish/video/init/"
	resp, err := helpers.MakeHTTPRequest[tiktokInitResponse](ctx, t.client, t.logger, http.MethodPost, endpoint, t.headers(account), nil, body)
	if err != nil {
		return "", tiktokFailure(err, "upload init failed")
	}
	if resp.Error.Code != "ok" {
		return "", resp.Error.appError()
	}
	if resp.Data.PublishID == "" {
		return "", helpers.NewError(helpers.KindUpstreamPermanent, "upload init returned no publish id").WithPlatform(string(models.PlatformTikTok))
	}
	return resp.Data.PublishID, nil
}

// waitForPublish polls until the post completes, fails, or the poll
// schedule runs out.
func (t *TikTok) waitForPublish(ctx context.Context, account *models.SocialAccount, publishID string) (string, error) {
	endpoint := strings.TrimRight(t.cfg.BaseURL, "/") + "/v2/post/publish/status/fetch/"
	body := map[string]string{"publish_id": publishID}

	var postID string
	attempts, err := helpers.Retry(ctx, t.cfg.Poll, isMediaNotReady, func(attempt int) error {
		resp, err := helpers.MakeHTTPRequest[tiktokStatusResponse](ctx, t.client, t.logger, http.MethodPost, endpoint, t.headers(account), nil, body)
		if err != nil {
			return tiktokFailure(err, "status check failed")
		}
		if resp.Error.Code != "ok" {
			return resp.Error.appError()
		}

		t.logger.Debug("TikTok publish status", "publish_id", publishID, "attempt", attempt, "status", resp.Data.Status)
		switch resp.Data.Status {
		case tiktokStatusComplete:
			postID = publishID
			if len(resp.Data.PostIDs) > 0 {
				postID = resp.Data.PostIDs[0].String()
			}
			return nil
		case tiktokStatusFailed:
			reason := resp.Data.FailReason
			if reason == "" {
				reason = "upload failed"
			}
			return helpers.NewError(helpers.KindUpstreamPermanent, "%s", reason).
				WithPlatform(string(models.PlatformTikTok)).
				WithCode(resp.Data.FailReason)
		}
		// PROCESSING_UPLOAD, SEND_TO_USER_INBOX and anything new keep polling.
		return helpers.NewError(helpers.KindUpstreamTransient, "post is still processing (%s)", resp.Data.Status).
			WithPlatform(string(models.PlatformTikTok)).
			WithCode(helpers.CodeMediaNotReady)
	})

	switch {
	case err == nil:
		return postID, nil
	case isMediaNotReady(err):
		return "", helpers.NewError(helpers.KindUpstreamTimeout,
			"publish %s is still processing after %d status checks, check TikTok later", publishID, attempts).
			WithPlatform(string(models.PlatformTikTok)).
			WithCode(helpers.CodeProcessingTimeout).
			WithContext("publish_id", publishID).
			Wrap(err)
	case ctx.Err() != nil:
		return "", helpers.UpstreamError(string(models.PlatformTikTok), ctx.Err(), "status polling interrupted").
			WithContext("publish_id", publishID)
	}
	if appErr, ok := helpers.AsAppError(err); ok {
		return "", appErr.WithContext("publish_id", publishID)
	}
	return "", err
}

func (e tiktokAPIError) appError() *helpers.AppError {
	rule, ok := tiktokErrors[e.Code]
	var appErr *helpers.AppError
	switch {
	case !ok:
		appErr = helpers.NewError(helpers.KindUpstreamPermanent, "TikTok upload failed (%s): %s", e.Code, e.Message)
	case e.Code == "invalid_param" && e.Message != "":
		appErr = helpers.NewError(rule.kind, "%s: %s", rule.message, e.Message)
	default:
		appErr = helpers.NewError(rule.kind, "%s", rule.message)
	}
	appErr.WithPlatform(string(models.PlatformTikTok)).WithCode(e.Code)
	if e.LogID != "" {
		appErr.WithContext("log_id", e.LogID)
	}
	return appErr
}

// tiktokFailure reads the error envelope TikTok also sends with non-2xx replies.
func tiktokFailure(err error, action string) error {
	var httpErr *helpers.HTTPError
	if errors.As(err, &httpErr) {
		var body struct {
			Error tiktokAPIError `json:"error"`
		}
		if httpErr.DecodeBody(&body) == nil && body.Error.Code != "" && body.Error.Code != "ok" {
			return body.Error.appError()
		}
	}
	return helpers.UpstreamError(string(models.PlatformTikTok), err, action)
}
