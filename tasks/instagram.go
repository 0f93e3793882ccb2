package tasks

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"content-studio/config"
	"content-studio/helpers"
	"content-studio/models"
)

const maxCarouselItems = 10

// Instagram publishes through the Business content API: create a media
// container, then publish it once the platform has processed the media.
type Instagram struct {
	cfg    config.InstagramConfig
	client *http.Client
	logger *slog.Logger
}

func NewInstagram(cfg config.InstagramConfig, client *http.Client, logger *slog.Logger) *Instagram {
	return &Instagram{cfg: cfg, client: client, logger: loggerOrDiscard(logger)}
}

func (i *Instagram) Platform() models.Platform { return models.PlatformInstagram }

type graphIDResponse struct {
	ID        string      `json:"id"`
	Permalink string      `json:"permalink"`
	Error     *GraphError `json:"error"`
}

func (i *Instagram) Publish(ctx context.Context, account *models.SocialAccount, req models.PublishRequest) (string, error) {
	caption, err := requireCaption(models.PlatformInstagram, req)
	if err != nil {
		return "", err
	}
	if account.AccountID == "" {
		return "", helpers.Validation("Instagram business account id is missing, reconnect the account").WithPlatform(string(models.PlatformInstagram))
	}
	if len(req.MediaFiles) == 0 {
		return "", helpers.Validation("Instagram requires at least one image or video").WithPlatform(string(models.PlatformInstagram))
	}

	i.logger.Info("Posting to Instagram", "account_id", account.ID, "ig_user_id", account.AccountID, "media", len(req.MediaFiles))

	var containerID string
	if isCarousel(req.MediaFiles) {
		containerID, err = i.createCarousel(ctx, account, req.MediaFiles, caption)
	} else {
		containerID, err = i.createContainer(ctx, account, req.MediaFiles[0], caption, false)
	}
	if err != nil {
		FailedPost(i.logger, models.PlatformInstagram, account.ID, err)
		return "", err
	}

	mediaID, err := i.publishContainer(ctx, account, containerID)
	if err != nil {
		FailedPost(i.logger, models.PlatformInstagram, account.ID, err)
		return "", err
	}

	if permalink := i.permalink(ctx, account, mediaID); permalink != "" {
		i.logger.Info("Instagram permalink", "media_id", mediaID, "permalink", permalink)
	}
	SuccessPost(i.logger, models.PlatformInstagram, account.ID, mediaID)
	return mediaID, nil
}

// isCarousel is true for 2..10 images and nothing else.
func isCarousel(files []models.MediaFile) bool {
	if len(files) < 2 || len(files) > maxCarouselItems {
		return false
	}
	for _, f := range files {
		if !helpers.IsImage(f.MimeType) {
			return false
		}
	}
	return true
}

func (i *Instagram) createContainer(ctx context.Context, account *models.SocialAccount, media models.MediaFile, caption string, carouselItem bool) (string, error) {
	postBody := url.Values{}
	postBody.Set("access_token", account.AccessToken)
	if helpers.IsVideo(media.MimeType) {
		postBody.Set("video_url", mediaURL(media))
		postBody.Set("media_type", "REELS")
	} else {
		postBody.Set("image_url", mediaURL(media))
	}
	if carouselItem {
		postBody.Set("is_carousel_item", "true")
	} else {
		postBody.Set("caption", caption)
	}
	return i.postForID(ctx, graphURL(i.cfg.GraphURL, account.AccountID, "media"), postBody, "failed to create media container")
}

func (i *Instagram) createCarousel(ctx context.Context, account *models.SocialAccount, files []models.MediaFile, caption string) (string, error) {
	children := make([]string, 0, len(files))
	for _, f := range files {
		id, err := i.createContainer(ctx, account, f, "", true)
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}

	postBody := url.Values{}
	postBody.Set("access_token", account.AccessToken)
	postBody.Set("media_type", "CAROUSEL")
	postBody.Set("caption", caption)
	postBody.Set("children", strings.Join(children, ","))
	return i.postForID(ctx, graphURL(i.cfg.GraphURL, account.AccountID, "media"), postBody, "failed to create carousel container")
}

// publishContainer retries while the container is still processing. When
// the schedule runs out the container is left in place and the error says so.
func (i *Instagram) publishContainer(ctx context.Context, account *models.SocialAccount, containerID string) (string, error) {
	postBody := url.Values{}
	postBody.Set("creation_id", containerID)
	postBody.Set("access_token", account.AccessToken)
	endpoint := graphURL(i.cfg.GraphURL, account.AccountID, "media_publish")

	var mediaID string
	attempts, err := helpers.Retry(ctx, i.cfg.Publish, isMediaNotReady, func(attempt int) error {
		i.logger.Debug("Instagram publish attempt", "container_id", containerID, "attempt", attempt)
		id, err := i.postForID(ctx, endpoint, postBody, "failed to publish media")
		if err != nil {
			return err
		}
		mediaID = id
		return nil
	})
	switch {
	case err == nil:
		return mediaID, nil
	case isMediaNotReady(err):
		return "", helpers.NewError(helpers.KindUpstreamTimeout,
			"media container %s was created but is still processing after %d attempts, retry publishing later", containerID, attempts).
			WithPlatform(string(models.PlatformInstagram)).
			WithCode(helpers.CodeProcessingTimeout).
			WithContext("container_id", containerID).
			Wrap(err)
	case ctx.Err() != nil:
		return "", helpers.UpstreamError(string(models.PlatformInstagram), ctx.Err(), "publish interrupted").
			WithContext("container_id", containerID)
	}
	if appErr, ok := helpers.AsAppError(err); ok {
		return "", appErr.WithContext("container_id", containerID)
	}
	return "", err
}

// permalink is best effort; failures only get logged.
func (i *Instagram) permalink(ctx context.Context, account *models.SocialAccount, mediaID string) string {
	params := url.Values{}
	params.Set("fields", "permalink")
	params.Set("access_token", account.AccessToken)
	resp, err := helpers.MakeHTTPRequest[graphIDResponse](ctx, i.client, i.logger, http.MethodGet, graphURL(i.cfg.GraphURL, mediaID), nil, params, nil)
	if err != nil {
		i.logger.Warn("Instagram permalink lookup failed", "media_id", mediaID, "error", err.Error())
		return ""
	}
	return resp.Permalink
}

func (i *Instagram) postForID(ctx context.Context, endpoint string, postBody url.Values, action string) (string, error) {
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	resp, err := helpers.MakeHTTPRequest[graphIDResponse](ctx, i.client, i.logger, http.MethodPost, endpoint, headers, nil, postBody)
	if err != nil {
		return "", graphFailure(models.PlatformInstagram, err, action)
	}
	if resp.Error != nil {
		return "", resp.Error.appError(models.PlatformInstagram, http.StatusOK)
	}
	if resp.ID == "" {
		return "", helpers.NewError(helpers.KindUpstreamPermanent, "%s: no id returned", action).WithPlatform(string(models.PlatformInstagram))
	}
	return resp.ID, nil
}
