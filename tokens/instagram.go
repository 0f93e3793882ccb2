package tokens

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"content-studio/config"
	"content-studio/helpers"
	"content-studio/models"

	"golang.org/x/oauth2"
)

// longLivedTokenSeconds is the 60 day lifetime Instagram reports for
// long-lived tokens when the response omits expires_in.
const longLivedTokenSeconds = 60 * 24 * 60 * 60

var instagramScopes = []string{
	"instagram_business_basic",
	"instagram_business_manage_comments",
	"instagram_business_content_publish",
	"instagram_business_manage_insights",
}

// Professional account types that may publish through the content API.
var supportedInstagramAccountTypes = map[string]bool{
	"BUSINESS":        true,
	"CREATOR":         true,
	"MEDIA_CREATOR":   true,
	"CONTENT_CREATOR": true,
}

type InstagramProfile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	AccountType    string `json:"account_type"`
	MediaCount     int    `json:"media_count"`
	FollowersCount int    `json:"followers_count"`
}

// InstagramAuth runs the Instagram Business login: code exchange, long-lived
// token exchange and the professional account check.
type InstagramAuth struct {
	cfg    config.InstagramConfig
	oauth  *oauth2.Config
	client *http.Client
	logger *slog.Logger
}

func NewInstagramAuth(cfg config.InstagramConfig, redirectURL string, client *http.Client, logger *slog.Logger) *InstagramAuth {
	return &InstagramAuth{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       instagramScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
		logger: logger,
	}
}

// AuthCodeURL returns the consent URL carrying state.
func (a *InstagramAuth) AuthCodeURL(state string) string {
	// Instagram expects a comma separated scope list.
	return a.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("scope", strings.Join(instagramScopes, ",")))
}

// Exchange trades an authorization code for a long-lived token.
func (a *InstagramAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if a.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	}
	short, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, oauthError(models.PlatformInstagram, err)
	}
	return a.ExchangeLongLived(ctx, short.AccessToken)
}

// ExchangeLongLived swaps a short-lived token for a 60 day token.
func (a *InstagramAuth) ExchangeLongLived(ctx context.Context, shortLived string) (*oauth2.Token, error) {
	params := url.Values{}
	params.Set("grant_type", "ig_exchange_token")
	params.Set("client_secret", a.cfg.ClientSecret)
	params.Set("access_token", shortLived)

	endpoint := strings.TrimRight(a.cfg.GraphURL, "/") + "/access_token"
	resp, err := helpers.MakeHTTPRequest[tokenResponse](ctx, a.client, a.logger, http.MethodGet, endpoint, nil, params, nil)
	if err != nil {
		return nil, helpers.UpstreamError(string(models.PlatformInstagram), err, "long-lived token exchange failed")
	}
	if resp.ExpiresIn == 0 {
		resp.ExpiresIn = longLivedTokenSeconds
	}
	return checkTokenResponse(models.PlatformInstagram, resp)
}

// BusinessAccount loads the profile behind token and rejects personal accounts.
func (a *InstagramAuth) BusinessAccount(ctx context.Context, token string) (*InstagramProfile, error) {
	params := url.Values{}
	params.Set("fields", "id,username,account_type,media_count,followers_count,name")
	params.Set("access_token", token)

	endpoint := strings.TrimRight(a.cfg.GraphURL, "/") + "/me"
	profile, err := helpers.MakeHTTPRequest[InstagramProfile](ctx, a.client, a.logger, http.MethodGet, endpoint, nil, params, nil)
	if err != nil {
		return nil, helpers.UpstreamError(string(models.PlatformInstagram), err, "failed to load Instagram account")
	}
	if !supportedInstagramAccountTypes[profile.AccountType] {
		return nil, helpers.NewError(helpers.KindUpstreamPermanent,
			"Instagram account type %q is not supported, convert it to a Business or Creator account", profile.AccountType).
			WithPlatform(string(models.PlatformInstagram)).
			WithCode("unsupported_account_type")
	}
	return &profile, nil
}

// ExpiresAt converts a token expiry for storage.
func ExpiresAt(token *oauth2.Token) *time.Time {
	return expiryOf(token)
}
