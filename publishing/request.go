package publishing

import (
	"context"
	"strings"

	"content-studio/helpers"
	"content-studio/models"
	"content-studio/storage"
)

// BuildRequest turns a content item into a publish request. Overrides win
// over the item's own title and caption; editing material is never sent.
func BuildRequest(ctx context.Context, files storage.Store, item *models.ContentItem, title, caption string) (models.PublishRequest, error) {
	req := models.PublishRequest{
		Title:   strings.TrimSpace(title),
		Caption: strings.TrimSpace(caption),
	}
	if req.Title == "" {
		req.Title = strings.TrimSpace(item.Title)
	}
	if req.Caption == "" {
		req.Caption = strings.TrimSpace(item.Caption)
	}
	if req.Caption == "" {
		return req, helpers.Validation("caption is required")
	}

	for _, f := range item.PublishableFiles() {
		publicURL, err := files.PublicURL(ctx, f.FileURL)
		if err != nil {
			return req, err
		}
		req.MediaFiles = append(req.MediaFiles, models.MediaFile{
			ID:        f.ID,
			FileName:  f.FileName,
			FileURL:   f.FileURL,
			PublicURL: publicURL,
			MimeType:  helpers.MimeType(f.FileType, f.FileURL),
			Size:      f.FileSize,
		})
	}
	return req, nil
}
