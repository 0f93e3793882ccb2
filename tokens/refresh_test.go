package tokens

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"content-studio/config"
	"content-studio/helpers"
	"content-studio/models"
	"content-studio/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestGoogleRefresherUsesRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "yt-refresh", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": "yt-new",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	refresher := NewGoogleRefresher(config.YouTubeConfig{ClientID: "client-id", ClientSecret: "secret", TokenURL: server.URL}, server.Client())
	token, err := refresher.Refresh(context.Background(), &models.SocialAccount{Platform: models.PlatformYouTube, RefreshToken: "yt-refresh"})
	require.NoError(t, err)
	assert.Equal(t, "yt-new", token.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.Expiry, time.Minute)

	_, err = refresher.Refresh(context.Background(), &models.SocialAccount{Platform: models.PlatformYouTube})
	assert.Equal(t, helpers.KindValidation, helpers.KindOf(err))
}

func TestGoogleRefresherInvalidGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Token has been expired or revoked."})
	}))
	defer server.Close()

	refresher := NewGoogleRefresher(config.YouTubeConfig{ClientID: "id", TokenURL: server.URL}, server.Client())
	_, err := refresher.Refresh(context.Background(), &models.SocialAccount{Platform: models.PlatformYouTube, RefreshToken: "r"})
	assert.Equal(t, helpers.KindTokenExpired, helpers.KindOf(err))
	assert.Equal(t, "invalid_grant", helpers.CodeOf(err))
}

func TestTikTokRefresherSendsClientKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/oauth/token/", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "tt-key", r.PostForm.Get("client_key"))
		assert.Equal(t, "tt-refresh", r.PostForm.Get("refresh_token"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  "tt-new",
			"refresh_token": "tt-refresh-2",
			"expires_in":    86400,
		})
	}))
	defer server.Close()

	refresher := NewTikTokRefresher(config.TikTokConfig{ClientKey: "tt-key", ClientSecret: "s", BaseURL: server.URL}, server.Client(), nil)
	token, err := refresher.Refresh(context.Background(), &models.SocialAccount{Platform: models.PlatformTikTok, RefreshToken: "tt-refresh"})
	require.NoError(t, err)
	assert.Equal(t, "tt-new", token.AccessToken)
	assert.Equal(t, "tt-refresh-2", token.RefreshToken)
}

func TestTikTokRefresherErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"error": "invalid_request", "error_description": "Refresh token is invalid"})
	}))
	defer server.Close()

	refresher := NewTikTokRefresher(config.TikTokConfig{BaseURL: server.URL}, server.Client(), nil)
	_, err := refresher.Refresh(context.Background(), &models.SocialAccount{Platform: models.PlatformTikTok, RefreshToken: "r"})
	assert.Equal(t, helpers.KindUpstreamPermanent, helpers.KindOf(err))
	assert.Equal(t, "invalid_request", helpers.CodeOf(err))
	assert.Contains(t, err.Error(), "Refresh token is invalid")
}

func TestManagerRefreshPersistsInstagramToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refresh_access_token", r.URL.Path)
		assert.Equal(t, "ig_refresh_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "token-instagram", r.URL.Query().Get("access_token"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "ig-new", "token_type": "bearer"})
	}))
	defer server.Close()

	db := testutil.NewTestDB(t)
	ws := uuid.NewString()
	account := testutil.CreateAccount(t, db, ws, models.PlatformInstagram, nil)

	store := NewStore(db, nil)
	manager := NewManager(store, nil, NewInstagramRefresher(config.InstagramConfig{GraphURL: server.URL}, server.Client(), nil))

	updated, err := manager.Refresh(context.Background(), ws, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "ig-new", updated.AccessToken)
	require.NotNil(t, updated.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(60*24*time.Hour), *updated.ExpiresAt, time.Hour)

	_, err = manager.Refresh(context.Background(), uuid.NewString(), account.ID)
	assert.Equal(t, helpers.KindNotFound, helpers.KindOf(err))
}

func TestManagerRefreshRejectsUnsupportedPlatform(t *testing.T) {
	db := testutil.NewTestDB(t)
	ws := uuid.NewString()
	account := testutil.CreateAccount(t, db, ws, models.PlatformFacebook, nil)

	manager := NewManager(NewStore(db, nil), nil)
	_, err := manager.Refresh(context.Background(), ws, account.ID)
	assert.Equal(t, helpers.KindValidation, helpers.KindOf(err))
}

func TestInstagramAuthLongLivedAndAccountType(t *testing.T) {
	accountType := "BUSINESS"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/access_token":
			assert.Equal(t, "ig_exchange_token", r.URL.Query().Get("grant_type"))
			writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "long", "expires_in": 5184000})
		case "/me":
			writeJSON(w, http.StatusOK, map[string]interface{}{"id": "1784", "username": "studio", "account_type": accountType})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	auth := NewInstagramAuth(config.InstagramConfig{GraphURL: server.URL, ClientSecret: "s"}, "https://app/callback", server.Client(), nil)

	token, err := auth.ExchangeLongLived(context.Background(), "short")
	require.NoError(t, err)
	assert.Equal(t, "long", token.AccessToken)
	require.NotNil(t, ExpiresAt(token))

	profile, err := auth.BusinessAccount(context.Background(), "long")
	require.NoError(t, err)
	assert.Equal(t, "1784", profile.ID)

	accountType = "PERSONAL"
	_, err = auth.BusinessAccount(context.Background(), "long")
	assert.Equal(t, helpers.KindUpstreamPermanent, helpers.KindOf(err))
	assert.Equal(t, "unsupported_account_type", helpers.CodeOf(err))
}
