package storage

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"content-studio/config"
	"content-studio/helpers"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// MinioStore reads content files from an S3 compatible bucket and hands
// platforms presigned URLs.
type MinioStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewMinioStore(ctx context.Context, cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create MinIO client")
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check bucket existence")
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, errors.Wrap(err, "failed to create bucket")
		}
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &MinioStore{client: client, bucket: cfg.MinioBucket, expiry: expiry}, nil
}

func objectName(fileURL string) string {
	return strings.TrimPrefix(fileURL, "/")
}

func (s *MinioStore) Fetch(ctx context.Context, fileURL string) (io.ReadCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(fileURL), minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, minioError(err, fileURL)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, minioError(err, fileURL)
	}
	return obj, info.Size, nil
}

func (s *MinioStore) PublicURL(ctx context.Context, fileURL string) (string, error) {
	if fileURL == "" {
		return "", helpers.Validation("file url is empty")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName(fileURL), s.expiry, nil)
	if err != nil {
		return "", helpers.Internal(err, "failed to generate presigned URL")
	}
	return u.String(), nil
}

func minioError(err error, fileURL string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return helpers.NotFound("media file %s not found", fileURL)
	}
	return helpers.Internal(err, "read media file")
}
