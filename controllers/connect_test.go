package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"content-studio/config"
	"content-studio/helpers"
	"content-studio/models"
	"content-studio/tokens"
	"content-studio/workflow"

	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const redirectHost = "https://app.example.com"

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// stubUserAuth replaces the provider exchange for the duration of the test.
func stubUserAuth(t *testing.T, fn func(w http.ResponseWriter, r *http.Request) (goth.User, error)) {
	t.Helper()
	previous := gothic.CompleteUserAuth
	gothic.CompleteUserAuth = fn
	t.Cleanup(func() { gothic.CompleteUserAuth = previous })
}

func newConnectEnv(t *testing.T) *env {
	env := newEnv(t)
	env.deps.Config.Auth.RedirectHost = redirectHost
	env.deps.Config.Auth.StateTTL = time.Minute
	env.deps.HTTPClient = http.DefaultClient
	return env
}

func signedState(t *testing.T, actor workflow.Actor, platform models.Platform, ttl time.Duration) string {
	t.Helper()
	state, err := SignState(testSecret, ttl, actor, string(platform))
	require.NoError(t, err)
	return state
}

func callback(platform models.Platform, params url.Values) string {
	return "/api/v1/auth/" + string(platform) + "/callback?" + params.Encode()
}

func redirectParams(t *testing.T, rec *httptest.ResponseRecorder) url.Values {
	t.Helper()
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	target, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", target.Host)
	assert.Equal(t, "/social", target.Path)
	return target.Query()
}

func countAccounts(t *testing.T, env *env) int {
	t.Helper()
	accounts, err := env.deps.Accounts.List(context.Background(), env.ws)
	require.NoError(t, err)
	return len(accounts)
}

func TestProviderAuthCallbackRejectsBadState(t *testing.T) {
	env := newConnectEnv(t)
	stubUserAuth(t, func(http.ResponseWriter, *http.Request) (goth.User, error) {
		t.Fatal("provider exchange must not run without a valid state")
		return goth.User{}, nil
	})

	states := map[string]string{
		"missing":        "",
		"other platform": signedState(t, env.manager, models.PlatformTikTok, time.Minute),
		"expired":        signedState(t, env.manager, models.PlatformYouTube, -time.Minute),
		"garbage":        "not-a-jwt",
	}
	for name, state := range states {
		e, rec := newEvent(http.MethodGet, callback(models.PlatformYouTube, url.Values{"state": {state}, "code": {"abc"}}), "", nil)
		require.NoError(t, ProviderAuthCallback(e, env.deps, models.PlatformYouTube), name)
		assert.Equal(t, "Invalid state parameter", redirectParams(t, rec).Get("error"), name)
	}
	assert.Zero(t, countAccounts(t, env))
}

func TestProviderAuthCallbackStoresAccount(t *testing.T) {
	env := newConnectEnv(t)
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	stubUserAuth(t, func(_ http.ResponseWriter, r *http.Request) (goth.User, error) {
		assert.Equal(t, "google", r.URL.Query().Get("provider"))
		return goth.User{
			UserID:       "UC-channel",
			Name:         "Studio Channel",
			AccessToken:  "yt-access",
			RefreshToken: "yt-refresh",
			ExpiresAt:    expiry,
		}, nil
	})

	state := signedState(t, env.manager, models.PlatformYouTube, time.Minute)
	e, rec := newEvent(http.MethodGet, callback(models.PlatformYouTube, url.Values{"state": {state}, "code": {"abc"}}), "", nil)
	require.NoError(t, ProviderAuthCallback(e, env.deps, models.PlatformYouTube))
	assert.Equal(t, "youtube account connected successfully", redirectParams(t, rec).Get("success"))

	account, err := env.deps.Accounts.GetValidToken(context.Background(), env.ws, models.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, "Studio Channel", account.AccountName)
	assert.Equal(t, "UC-channel", account.AccountID)
	assert.Equal(t, "yt-access", account.AccessToken)
	assert.Equal(t, "yt-refresh", account.RefreshToken)
	require.NotNil(t, account.ExpiresAt)
	assert.True(t, expiry.Equal(*account.ExpiresAt))
}

func TestProviderAuthCallbackReportsExchangeFailure(t *testing.T) {
	env := newConnectEnv(t)
	stubUserAuth(t, func(http.ResponseWriter, *http.Request) (goth.User, error) {
		return goth.User{}, helpers.Validation("could not find a matching session for this request")
	})

	state := signedState(t, env.manager, models.PlatformTikTok, time.Minute)
	e, rec := newEvent(http.MethodGet, callback(models.PlatformTikTok, url.Values{"state": {state}}), "", nil)
	require.NoError(t, ProviderAuthCallback(e, env.deps, models.PlatformTikTok))
	assert.Equal(t, "Failed to connect tiktok account", redirectParams(t, rec).Get("error"))
	assert.Zero(t, countAccounts(t, env))

	e, rec = newEvent(http.MethodGet, callback(models.PlatformTikTok, url.Values{"error_description": {"User denied access"}}), "", nil)
	require.NoError(t, ProviderAuthCallback(e, env.deps, models.PlatformTikTok))
	assert.Equal(t, "User denied access", redirectParams(t, rec).Get("error"))
}

func TestFacebookCallbackConnectsPublishablePages(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/me/accounts", r.URL.Path)
		assert.Equal(t, "user-token", r.URL.Query().Get("access_token"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": []map[string]interface{}{
				{"id": "page-1", "name": "Studio", "category": "Media", "access_token": "page-1-token", "tasks": []string{"ANALYZE", "CREATE_CONTENT"}},
				{"id": "page-2", "name": "Fan Club", "category": "Community", "access_token": "page-2-token", "tasks": []string{"ANALYZE"}},
			},
		})
	}))
	defer graph.Close()

	env := newConnectEnv(t)
	env.deps.Config.Facebook = config.FacebookConfig{GraphURL: graph.URL, GraphVersion: "v21.0"}
	env.deps.HTTPClient = graph.Client()
	stubUserAuth(t, func(_ http.ResponseWriter, r *http.Request) (goth.User, error) {
		assert.Equal(t, "facebook", r.URL.Query().Get("provider"))
		return goth.User{UserID: "fb-user", Name: "Owner", AccessToken: "user-token"}, nil
	})

	state := signedState(t, env.manager, models.PlatformFacebook, time.Minute)
	e, rec := newEvent(http.MethodGet, callback(models.PlatformFacebook, url.Values{"state": {state}}), "", nil)
	require.NoError(t, ProviderAuthCallback(e, env.deps, models.PlatformFacebook))
	assert.Equal(t, "1 Facebook Page(s) connected successfully", redirectParams(t, rec).Get("success"))

	accounts, err := env.deps.Accounts.List(context.Background(), env.ws)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Studio (Media)", accounts[0].AccountName)
	assert.Equal(t, "page-1", accounts[0].AccountID)
	assert.Equal(t, "page-1-token", accounts[0].AccessToken)
}

func instagramServer(t *testing.T, accountType string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/access_token":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "ig-code", r.PostForm.Get("code"))
			writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "short", "token_type": "bearer"})
		case "/access_token":
			assert.Equal(t, "short", r.URL.Query().Get("access_token"))
			writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "long", "expires_in": 5184000})
		case "/me":
			writeJSON(w, http.StatusOK, map[string]interface{}{"id": "1784", "username": "studio", "account_type": accountType})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func useInstagram(env *env, server *httptest.Server) {
	cfg := config.InstagramConfig{
		ClientID:     "ig-client",
		ClientSecret: "ig-secret",
		AuthURL:      server.URL + "/oauth/authorize",
		TokenURL:     server.URL + "/oauth/access_token",
		GraphURL:     server.URL,
	}
	env.deps.Instagram = tokens.NewInstagramAuth(cfg, "https://api.example.com/api/v1/auth/instagram/callback", server.Client(), helpers.DiscardLogger())
}

func TestInstagramOAuthCallbackStoresBusinessAccount(t *testing.T) {
	server := instagramServer(t, "BUSINESS")
	defer server.Close()
	env := newConnectEnv(t)
	useInstagram(env, server)

	state := signedState(t, env.manager, models.PlatformInstagram, time.Minute)
	e, rec := newEvent(http.MethodGet, callback(models.PlatformInstagram, url.Values{"state": {state}, "code": {"ig-code"}}), "", nil)
	require.NoError(t, InstagramOAuthCallback(e, env.deps))
	assert.Equal(t, "Instagram Business account connected successfully", redirectParams(t, rec).Get("success"))

	account, err := env.deps.Accounts.GetValidToken(context.Background(), env.ws, models.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, "studio", account.AccountName)
	assert.Equal(t, "1784", account.AccountID)
	assert.Equal(t, "long", account.AccessToken)
	require.NotNil(t, account.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(60*24*time.Hour), *account.ExpiresAt, time.Hour)
}

func TestInstagramOAuthCallbackRejections(t *testing.T) {
	server := instagramServer(t, "PERSONAL")
	defer server.Close()
	env := newConnectEnv(t)
	useInstagram(env, server)

	state := signedState(t, env.manager, models.PlatformInstagram, time.Minute)

	e, rec := newEvent(http.MethodGet, callback(models.PlatformInstagram, url.Values{"state": {state}}), "", nil)
	require.NoError(t, InstagramOAuthCallback(e, env.deps))
	assert.Equal(t, "Missing authorization code or state", redirectParams(t, rec).Get("error"))

	youtubeState := signedState(t, env.manager, models.PlatformYouTube, time.Minute)
	e, rec = newEvent(http.MethodGet, callback(models.PlatformInstagram, url.Values{"state": {youtubeState}, "code": {"ig-code"}}), "", nil)
	require.NoError(t, InstagramOAuthCallback(e, env.deps))
	assert.Equal(t, "Missing authorization code or state", redirectParams(t, rec).Get("error"))

	e, rec = newEvent(http.MethodGet, callback(models.PlatformInstagram, url.Values{"state": {state}, "code": {"ig-code"}}), "", nil)
	require.NoError(t, InstagramOAuthCallback(e, env.deps))
	assert.NotEmpty(t, redirectParams(t, rec).Get("error"))

	assert.Zero(t, countAccounts(t, env))
}
