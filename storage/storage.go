package storage

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"content-studio/config"
	"content-studio/helpers"

	"github.com/pkg/errors"
)

// Store resolves content file references to bytes and to URLs that platform
// servers can fetch on their own.
type Store interface {
	// Fetch streams the file. size is -1 when unknown.
	Fetch(ctx context.Context, fileURL string) (body io.ReadCloser, size int64, err error)
	PublicURL(ctx context.Context, fileURL string) (string, error)
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, client *http.Client) (Store, error) {
	switch cfg.Driver {
	case "minio":
		return NewMinioStore(ctx, cfg)
	case "local", "":
		return NewPublicHTTPStore(cfg, client)
	}
	return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
}

const publicFilesPath = "/api/files/public"

// PublicHTTPStore serves files from the app's own public file route.
type PublicHTTPStore struct {
	base   *url.URL
	client *http.Client
}

func NewPublicHTTPStore(cfg config.StorageConfig, client *http.Client) (*PublicHTTPStore, error) {
	base, err := url.Parse(strings.TrimRight(cfg.PublicBaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse public base url")
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, errors.Errorf("public base url %q must be absolute", cfg.PublicBaseURL)
	}
	if !cfg.AllowPrivateHosts && isPrivateHost(base.Hostname()) {
		return nil, errors.Errorf("public base url %q is not reachable by platform servers", cfg.PublicBaseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &PublicHTTPStore{base: base, client: client}, nil
}

// PublicURL maps "/ws/file.mp4" to "{base}/api/files/public/ws/file.mp4".
// Absolute http(s) URLs are returned unchanged.
func (s *PublicHTTPStore) PublicURL(_ context.Context, fileURL string) (string, error) {
	if fileURL == "" {
		return "", helpers.Validation("file url is empty")
	}
	if strings.HasPrefix(fileURL, "http://") || strings.HasPrefix(fileURL, "https://") {
		return fileURL, nil
	}
	u := *s.base
	u.Path = strings.TrimRight(u.Path, "/") + publicFilesPath + "/" + strings.TrimLeft(fileURL, "/")
	return u.String(), nil
}

func (s *PublicHTTPStore) Fetch(ctx context.Context, fileURL string) (io.ReadCloser, int64, error) {
	target, err := s.PublicURL(ctx, fileURL)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, helpers.Internal(err, "build file request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, helpers.Internal(err, "fetch media file")
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, 0, helpers.NotFound("media file %s not found", fileURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, 0, helpers.Internal(errors.Errorf("GET %s: %s", fileURL, resp.Status), "fetch media file")
	}
	return resp.Body, resp.ContentLength, nil
}

func isPrivateHost(host string) bool {
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
