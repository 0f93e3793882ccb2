package tasks

import (
	"net/http"
	"strconv"
	"strings"

	"content-studio/helpers"
	"content-studio/models"

	"github.com/pkg/errors"
)

// GraphError is the error object returned by the Facebook and Instagram
// Graph APIs.
type GraphError struct {
	Message        string `json:"message"`
	Type           string `json:"type"`
	Code           int    `json:"code"`
	ErrorSubcode   int    `json:"error_subcode"`
	ErrorUserTitle string `json:"error_user_title"`
	ErrorUserMsg   string `json:"error_user_msg"`
	IsTransient    bool   `json:"is_transient"`
	FbtraceID      string `json:"fbtrace_id"`
}

type graphErrorBody struct {
	Error *GraphError `json:"error"`
}

const (
	graphCodeInvalidToken = 190
	graphCodeNotReady     = 9007
	graphSubcodeNotReady  = 2207027
)

// Application and page level throttling.
var graphRateLimitCodes = map[int]bool{4: true, 17: true, 32: true, 341: true, 613: true}

// NotReady reports the "media is not ready for publishing" condition.
func (g *GraphError) NotReady() bool {
	return (g.Code == graphCodeNotReady && g.ErrorSubcode == graphSubcodeNotReady) || g.Code == graphSubcodeNotReady
}

func (g *GraphError) text() string {
	if g.Message != "" {
		return g.Message
	}
	if g.ErrorUserMsg != "" {
		return g.ErrorUserMsg
	}
	return "unknown Graph API error"
}

// appError normalizes g. The platform message is kept verbatim.
func (g *GraphError) appError(platform models.Platform, status int) *helpers.AppError {
	kind := helpers.KindUpstreamPermanent
	code := strconv.Itoa(g.Code)
	switch {
	case g.Code == graphCodeInvalidToken:
		kind = helpers.KindTokenExpired
	case g.NotReady():
		kind = helpers.KindUpstreamTransient
		code = helpers.CodeMediaNotReady
	case g.IsTransient || graphRateLimitCodes[g.Code] || status == http.StatusTooManyRequests || status >= 500:
		kind = helpers.KindUpstreamTransient
	}
	appErr := helpers.NewError(kind, "%s", g.text()).WithPlatform(string(platform)).WithCode(code)
	if g.ErrorSubcode != 0 {
		appErr.WithContext("error_subcode", strconv.Itoa(g.ErrorSubcode))
	}
	if g.FbtraceID != "" {
		appErr.WithContext("fbtrace_id", g.FbtraceID)
	}
	return appErr
}

// graphFailure converts a failed Graph call into an *helpers.AppError.
func graphFailure(platform models.Platform, err error, action string) error {
	var httpErr *helpers.HTTPError
	if errors.As(err, &httpErr) {
		var body graphErrorBody
		if httpErr.DecodeBody(&body) == nil && body.Error != nil {
			return body.Error.appError(platform, httpErr.StatusCode)
		}
	}
	return helpers.UpstreamError(string(platform), err, action)
}

func isMediaNotReady(err error) bool {
	return helpers.CodeOf(err) == helpers.CodeMediaNotReady
}

func graphURL(base string, parts ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}
