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
	"content-studio/metrics"
	"content-studio/models"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Refresher obtains a fresh access token for one platform.
type Refresher interface {
	Platform() models.Platform
	Refresh(ctx context.Context, account *models.SocialAccount) (*oauth2.Token, error)
}

// tokenResponse is the token payload shared by the Graph and TikTok endpoints.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (r tokenResponse) token(now time.Time) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
	}
	if r.ExpiresIn > 0 {
		token.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return token
}

func requireRefreshToken(account *models.SocialAccount) error {
	if account.RefreshToken == "" {
		return helpers.Validation("no refresh token available for this account").WithPlatform(string(account.Platform))
	}
	return nil
}

// GoogleRefresher refreshes YouTube credentials through the Google token endpoint.
type GoogleRefresher struct {
	conf   *oauth2.Config
	client *http.Client
}

func NewGoogleRefresher(cfg config.YouTubeConfig, client *http.Client) *GoogleRefresher {
	return &GoogleRefresher{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
		},
		client: client,
	}
}

func (g *GoogleRefresher) Platform() models.Platform { return models.PlatformYouTube }

func (g *GoogleRefresher) Refresh(ctx context.Context, account *models.SocialAccount) (*oauth2.Token, error) {
	if err := requireRefreshToken(account); err != nil {
		return nil, err
	}
	if g.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	}
	// An already expired token forces the source to hit the endpoint.
	stale := &oauth2.Token{RefreshToken: account.RefreshToken, Expiry: time.Unix(1, 0)}
	token, err := g.conf.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, oauthError(models.PlatformYouTube, err)
	}
	return token, nil
}

// FacebookRefresher extends a Facebook token with fb_exchange_token.
type FacebookRefresher struct {
	cfg    config.FacebookConfig
	client *http.Client
	logger *slog.Logger
}

func NewFacebookRefresher(cfg config.FacebookConfig, client *http.Client, logger *slog.Logger) *FacebookRefresher {
	return &FacebookRefresher{cfg: cfg, client: client, logger: logger}
}

func (f *FacebookRefresher) Platform() models.Platform { return models.PlatformFacebook }

func (f *FacebookRefresher) Refresh(ctx context.Context, account *models.SocialAccount) (*oauth2.Token, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", f.cfg.AppID)
	params.Set("client_secret", f.cfg.AppSecret)
	params.Set("fb_exchange_token", account.AccessToken)

	endpoint := strings.TrimRight(f.cfg.GraphURL, "/") + "/" + f.cfg.GraphVersion + "/oauth/access_token"
	resp, err := helpers.MakeHTTPRequest[tokenResponse](ctx, f.client, f.logger, http.MethodGet, endpoint, nil, params, nil)
	if err != nil {
		return nil, helpers.UpstreamError(string(models.PlatformFacebook), err, "token exchange failed")
	}
	return checkTokenResponse(models.PlatformFacebook, resp)
}

// InstagramRefresher extends a long-lived Instagram token with ig_refresh_token.
type InstagramRefresher struct {
	cfg    config.InstagramConfig
	client *http.Client
	logger *slog.Logger
}

func NewInstagramRefresher(cfg config.InstagramConfig, client *http.Client, logger *slog.Logger) *InstagramRefresher {
	return &InstagramRefresher{cfg: cfg, client: client, logger: logger}
}

func (i *InstagramRefresher) Platform() models.Platform { return models.PlatformInstagram }

func (i *InstagramRefresher) Refresh(ctx context.Context, account *models.SocialAccount) (*oauth2.Token, error) {
	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", account.AccessToken)

	endpoint := strings.TrimRight(i.cfg.GraphURL, "/") + "/refresh_access_token"
	resp, err := helpers.MakeHTTPRequest[tokenResponse](ctx, i.client, i.logger, http.MethodGet, endpoint, nil, params, nil)
	if err != nil {
		return nil, helpers.UpstreamError(string(models.PlatformInstagram), err, "token refresh failed")
	}
	if resp.ExpiresIn == 0 {
		resp.ExpiresIn = longLivedTokenSeconds
	}
	return checkTokenResponse(models.PlatformInstagram, resp)
}

// TikTokRefresher refreshes through /v2/oauth/token/, which names the client
// "client_key" and so cannot go through oauth2.Config.
type TikTokRefresher struct {
	cfg    config.TikTokConfig
	client *http.Client
	logger *slog.Logger
}

func NewTikTokRefresher(cfg config.TikTokConfig, client *http.Client, logger *slog.Logger) *TikTokRefresher {
	return &TikTokRefresher{cfg: cfg, client: client, logger: logger}
}

func (t *TikTokRefresher) Platform() models.Platform { return models.PlatformTikTok }

func (t *TikTokRefresher) Refresh(ctx context.Context, account *models.SocialAccount) (*oauth2.Token, error) {
	if err := requireRefreshToken(account); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("client_key", t.cfg.ClientKey)
	form.Set("client_secret", t.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", account.RefreshToken)

	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	endpoint := strings.TrimRight(t.cfg.BaseURL, "/") + "/v2/oauth/token/"
	resp, err := helpers.MakeHTTPRequest[tokenResponse](ctx, t.client, t.logger, http.MethodPost, endpoint, headers, nil, form)
	if err != nil {
		return nil, helpers.UpstreamError(string(models.PlatformTikTok), err, "token refresh failed")
	}
	return checkTokenResponse(models.PlatformTikTok, resp)
}

func checkTokenResponse(platform models.Platform, resp tokenResponse) (*oauth2.Token, error) {
	if resp.Error != "" {
		msg := resp.ErrorDescription
		if msg == "" {
			msg = resp.Error
		}
		return nil, helpers.NewError(helpers.KindUpstreamPermanent, "token refresh error: %s", msg).
			WithPlatform(string(platform)).
			WithCode(resp.Error)
	}
	if resp.AccessToken == "" {
		return nil, helpers.NewError(helpers.KindUpstreamPermanent, "token response had no access token").
			WithPlatform(string(platform))
	}
	return resp.token(time.Now()), nil
}

func oauthError(platform models.Platform, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		appErr := helpers.NewError(helpers.KindUpstreamPermanent, "token refresh error: %s", retrieveErr.ErrorCode).
			WithPlatform(string(platform)).
			WithCode(retrieveErr.ErrorCode).
			Wrap(err)
		if retrieveErr.ErrorCode == "invalid_grant" {
			appErr.Kind = helpers.KindTokenExpired
			appErr.Message = "refresh token revoked or expired, reconnect required"
		}
		return appErr
	}
	return helpers.UpstreamError(string(platform), err, "token refresh failed")
}

// Manager runs refreshes and persists their result.
type Manager struct {
	store      *Store
	refreshers map[models.Platform]Refresher
	logger     *slog.Logger
}

func NewManager(store *Store, logger *slog.Logger, refreshers ...Refresher) *Manager {
	m := &Manager{store: store, refreshers: make(map[models.Platform]Refresher, len(refreshers)), logger: logger}
	for _, r := range refreshers {
		m.refreshers[r.Platform()] = r
	}
	if m.logger == nil {
		m.logger = helpers.DiscardLogger()
	}
	return m
}

// Refresh renews the credentials of one active account.
func (m *Manager) Refresh(ctx context.Context, workspaceID, accountID string) (*models.SocialAccount, error) {
	account, err := m.store.Get(ctx, workspaceID, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, helpers.NewError(helpers.KindNoActiveAccount, "account is disconnected").WithPlatform(string(account.Platform))
	}
	refresher, ok := m.refreshers[account.Platform]
	if !ok {
		return nil, helpers.Validation("token refresh is not supported for %s", account.Platform)
	}

	token, err := refresher.Refresh(ctx, account)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues(string(account.Platform), "error").Inc()
		m.logger.Error("Token refresh failed", append(helpers.LogAttrs(err), "account_id", account.ID)...)
		return nil, err
	}

	updated, err := m.store.UpdateToken(ctx, account, token)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues(string(account.Platform), "conflict").Inc()
		return nil, err
	}
	metrics.TokenRefreshTotal.WithLabelValues(string(account.Platform), "ok").Inc()
	m.logger.Info("Token refreshed", "account_id", updated.ID, "platform", updated.Platform, "expires_at", updated.ExpiresAt)
	return updated, nil
}
