package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// maxLoggedBody bounds how much of a response body ends up in debug logs.
const maxLoggedBody = 2048

// Universal HTTP request function
func MakeHTTPRequest[T any](
	ctx context.Context,
	client *http.Client,
	logger *slog.Logger,
	method string,
	fullURL string,
	headers map[string]string,
	queryParams url.Values,
	body interface{},
) (T, error) {
	var result T

	var bodyReader io.Reader

	// Prepare request body based on Content-Type
	if body != nil {
		contentType := headers["Content-Type"]

		switch contentType {
		case "application/x-www-form-urlencoded":
			formValues, ok := body.(url.Values)
			if !ok {
				return result, fmt.Errorf("body must be url.Values when using application/x-www-form-urlencoded")
			}
			bodyReader = strings.NewReader(formValues.Encode())

		case "application/json", "":
			b, err := json.Marshal(body)
			if err != nil {
				return result, err
			}
			bodyReader = bytes.NewBuffer(b)

		default:
			return result, fmt.Errorf("unsupported Content-Type: %s", contentType)
		}
	}

	// Add query parameters
	u, err := url.Parse(fullURL)
	if err != nil {
		return result, err
	}
	if len(queryParams) > 0 {
		q := u.Query()
		for k, v := range queryParams {
			q[k] = v
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return result, err
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil && headers["Content-Type"] == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, err
	}

	if logger != nil {
		logger.Debug("HTTP Request", "method", method, "url", redactURL(u), "status", resp.StatusCode, "body", truncate(string(respBytes), maxLoggedBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: respBytes}
	}

	if len(respBytes) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return result, fmt.Errorf("decode %s response: %w", u.Host, err)
	}

	return result, nil
}

// HTTPError is returned by MakeHTTPRequest for non-2xx responses. Callers
// decode Body to recover the platform's structured error.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return e.Status + ": " + string(e.Body)
}

// DecodeBody unmarshals the error body into v.
func (e *HTTPError) DecodeBody(v interface{}) error {
	return json.Unmarshal(e.Body, v)
}

var secretParams = []string{"access_token", "client_secret", "fb_exchange_token", "refresh_token"}

func redactURL(u *url.URL) string {
	q := u.Query()
	changed := false
	for _, key := range secretParams {
		if q.Has(key) {
			q.Set(key, "redacted")
			changed = true
		}
	}
	if !changed {
		return u.String()
	}
	copied := *u
	copied.RawQuery = q.Encode()
	return copied.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
