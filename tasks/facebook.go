package tasks

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"content-studio/config"
	"content-studio/helpers"
	"content-studio/models"
)

// Facebook publishes to a Page in a single Graph call. The edge depends on
// the first media file: photos for images, videos for videos, feed otherwise.
type Facebook struct {
	cfg    config.FacebookConfig
	client *http.Client
	logger *slog.Logger
}

func NewFacebook(cfg config.FacebookConfig, client *http.Client, logger *slog.Logger) *Facebook {
	return &Facebook{cfg: cfg, client: client, logger: loggerOrDiscard(logger)}
}

func (f *Facebook) Platform() models.Platform { return models.PlatformFacebook }

type graphPostResponse struct {
	ID     string      `json:"id"`
	PostID string      `json:"post_id"`
	Error  *GraphError `json:"error"`
}

func (f *Facebook) Publish(ctx context.Context, account *models.SocialAccount, req models.PublishRequest) (string, error) {
	caption, err := requireCaption(models.PlatformFacebook, req)
	if err != nil {
		return "", err
	}

	pageID := account.AccountID
	if pageID == "" {
		pageID = "me"
	}

	f.logger.Info("Posting to Facebook", "account_id", account.ID, "page_id", pageID, "media", len(req.MediaFiles))

	edge := "feed"
	postBody := url.Values{}
	postBody.Set("access_token", account.AccessToken)

	var media *models.MediaFile
	if len(req.MediaFiles) > 0 {
		media = &req.MediaFiles[0]
	}
	switch {
	case media != nil && helpers.IsImage(media.MimeType):
		edge = "photos"
		postBody.Set("url", mediaURL(*media))
		postBody.Set("caption", caption)
		postBody.Set("published", "true")
	case media != nil && helpers.IsVideo(media.MimeType):
		edge = "videos"
		postBody.Set("file_url", mediaURL(*media))
		postBody.Set("description", caption)
		postBody.Set("published", "true")
	default:
		postBody.Set("message", caption)
	}

	endpoint := graphURL(f.cfg.GraphURL, f.cfg.GraphVersion, pageID, edge)
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	post, err := helpers.MakeHTTPRequest[graphPostResponse](ctx, f.client, f.logger, http.MethodPost, endpoint, headers, nil, postBody)
	if err != nil {
		err = graphFailure(models.PlatformFacebook, err, "Facebook publish failed")
		FailedPost(f.logger, models.PlatformFacebook, account.ID, err)
		return "", err
	}
	if post.Error != nil {
		err = post.Error.appError(models.PlatformFacebook, http.StatusOK)
		FailedPost(f.logger, models.PlatformFacebook, account.ID, err)
		return "", err
	}

	postID := post.ID
	if postID == "" {
		postID = post.PostID
	}
	if postID == "" {
		err = helpers.NewError(helpers.KindUpstreamPermanent, "Facebook returned no post id").WithPlatform(string(models.PlatformFacebook))
		FailedPost(f.logger, models.PlatformFacebook, account.ID, err)
		return "", err
	}

	SuccessPost(f.logger, models.PlatformFacebook, account.ID, postID)
	return postID, nil
}
