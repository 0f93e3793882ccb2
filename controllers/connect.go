package controllers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"content-studio/helpers"
	"content-studio/models"
	"content-studio/tokens"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/facebook"
	"github.com/markbates/goth/providers/google"
	"github.com/markbates/goth/providers/tiktok"
	"github.com/pocketbase/pocketbase/core"
)

// gothProviders maps our platform names to goth provider names.
var gothProviders = map[models.Platform]string{
	models.PlatformFacebook: "facebook",
	models.PlatformYouTube:  "google",
	models.PlatformTikTok:   "tiktok",
}

type facebookPages struct {
	Data []facebookPage `json:"data"`
}

type facebookPage struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	AccessToken string   `json:"access_token"`
	Tasks       []string `json:"tasks"`
}

func (p facebookPage) canPublish() bool {
	for _, task := range p.Tasks {
		if task == "CREATE_CONTENT" || task == "MANAGE" {
			return true
		}
	}
	return false
}

func SetupConnectRoutes(se *core.ServeEvent, deps *Deps) {
	cfg := deps.Config
	callback := func(platform models.Platform) string {
		return cfg.APIHost + "/api/v1/auth/" + string(platform) + "/callback"
	}

	gothic.Store = sessions.NewCookieStore([]byte(cfg.Auth.SessionSecret))
	youtube := google.New(cfg.YouTube.ClientID, cfg.YouTube.ClientSecret, callback(models.PlatformYouTube),
		"https://www.googleapis.com/auth/youtube.upload",
		"https://www.googleapis.com/auth/youtube.readonly",
	)
	youtube.SetAccessType("offline")
	youtube.SetPrompt("consent")
	goth.UseProviders(
		facebook.New(cfg.Facebook.AppID, cfg.Facebook.AppSecret, callback(models.PlatformFacebook),
			"pages_manage_posts", "pages_show_list", "pages_read_engagement", "publish_video"),
		youtube,
		tiktok.New(cfg.TikTok.ClientKey, cfg.TikTok.ClientSecret, callback(models.PlatformTikTok),
			"user.info.basic", "video.publish", "video.upload"),
	)

	start := se.Router.Group("/api/v1/auth")
	start.BindFunc(RequireBrowserActor(deps))
	for platform := range gothProviders {
		platform := platform
		start.GET("/"+string(platform)+"/start", func(e *core.RequestEvent) error {
			return BeginProviderAuth(e, deps, platform)
		})
		se.Router.GET("/api/v1/auth/"+string(platform)+"/callback", func(e *core.RequestEvent) error {
			return ProviderAuthCallback(e, deps, platform)
		})
	}

	start.GET("/instagram/start", func(e *core.RequestEvent) error {
		return BeginInstagramAuth(e, deps)
	})
	se.Router.GET("/api/v1/auth/instagram/callback", func(e *core.RequestEvent) error {
		return InstagramOAuthCallback(e, deps)
	})
}

func BeginProviderAuth(e *core.RequestEvent, deps *Deps, platform models.Platform) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	state, err := SignState(deps.Config.Auth.JWTSecret, deps.Config.Auth.StateTTL, actor, string(platform))
	if err != nil {
		return helpers.Error(e, helpers.Internal(err, "sign oauth state"))
	}
	q := e.Request.URL.Query()
	q.Set("provider", gothProviders[platform])
	q.Set("state", state)
	e.Request.URL.RawQuery = q.Encode()
	gothic.BeginAuthHandler(e.Response, e.Request)
	return nil
}

func ProviderAuthCallback(e *core.RequestEvent, deps *Deps, platform models.Platform) error {
	if msg := e.Request.URL.Query().Get("error_description"); msg != "" {
		return connectRedirect(e, deps, "error", msg)
	}
	state, err := ParseState(deps.Config.Auth.JWTSecret, e.Request.URL.Query().Get("state"), string(platform))
	if err != nil {
		deps.Logger.Warn("Rejected OAuth callback", "platform", platform, "error", err.Error())
		return connectRedirect(e, deps, "error", "Invalid state parameter")
	}

	q := e.Request.URL.Query()
	q.Set("provider", gothProviders[platform])
	e.Request.URL.RawQuery = q.Encode()
	user, err := gothic.CompleteUserAuth(e.Response, e.Request)
	if err != nil {
		deps.Logger.Error("OAuth exchange failed", "platform", platform, "error", err.Error())
		return connectRedirect(e, deps, "error", "Failed to connect "+string(platform)+" account")
	}

	ctx := e.Request.Context()
	var expiresAt *time.Time
	if !user.ExpiresAt.IsZero() {
		expiresAt = &user.ExpiresAt
	}

	if platform == models.PlatformFacebook {
		return connectFacebookPages(e, deps, state, user, expiresAt)
	}

	name := user.Name
	if name == "" {
		name = user.NickName
	}
	if name == "" {
		name = string(platform) + " account"
	}
	_, err = deps.Accounts.Upsert(ctx, tokens.UpsertInput{
		WorkspaceID:  state.WorkspaceID,
		Platform:     platform,
		AccountName:  name,
		AccountID:    user.UserID,
		AccessToken:  user.AccessToken,
		RefreshToken: user.RefreshToken,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		deps.Logger.Error("Failed to save social account", append(helpers.LogAttrs(err), "platform", platform)...)
		return connectRedirect(e, deps, "error", "Failed to save "+string(platform)+" account")
	}
	return connectRedirect(e, deps, "success", string(platform)+" account connected successfully")
}

// connectFacebookPages stores every page the user may publish to, each with
// its own page token.
func connectFacebookPages(e *core.RequestEvent, deps *Deps, state *StateClaims, user goth.User, expiresAt *time.Time) error {
	ctx := e.Request.Context()
	params := url.Values{}
	params.Set("fields", "id,name,category,access_token,tasks")
	params.Set("access_token", user.AccessToken)
	endpoint := strings.TrimRight(deps.Config.Facebook.GraphURL, "/") + "/" + deps.Config.Facebook.GraphVersion + "/me/accounts"

	pages, err := helpers.MakeHTTPRequest[facebookPages](ctx, deps.HTTPClient, deps.Logger, http.MethodGet, endpoint, nil, params, nil)
	if err != nil {
		deps.Logger.Error("Failed to fetch Facebook pages", "error", err.Error())
		return connectRedirect(e, deps, "error", "Failed to fetch Facebook pages")
	}

	connected := 0
	for _, page := range pages.Data {
		if !page.canPublish() {
			continue
		}
		_, err := deps.Accounts.Upsert(ctx, tokens.UpsertInput{
			WorkspaceID:  state.WorkspaceID,
			Platform:     models.PlatformFacebook,
			AccountName:  page.Name + " (" + page.Category + ")",
			AccountID:    page.ID,
			AccessToken:  page.AccessToken,
			RefreshToken: user.RefreshToken,
			ExpiresAt:    expiresAt,
		})
		if err != nil {
			deps.Logger.Error("Failed to add Facebook page connection", append(helpers.LogAttrs(err), "page_id", page.ID)...)
			continue
		}
		connected++
	}
	if connected == 0 {
		return connectRedirect(e, deps, "success", "Facebook connected, but no Pages with required permissions found")
	}
	return connectRedirect(e, deps, "success", strconv.Itoa(connected)+" Facebook Page(s) connected successfully")
}

func BeginInstagramAuth(e *core.RequestEvent, deps *Deps) error {
	actor, ok := actorFrom(e)
	if !ok {
		return unauthorized(e)
	}
	state, err := SignState(deps.Config.Auth.JWTSecret, deps.Config.Auth.StateTTL, actor, string(models.PlatformInstagram))
	if err != nil {
		return helpers.Error(e, helpers.Internal(err, "sign oauth state"))
	}
	return e.Redirect(http.StatusTemporaryRedirect, deps.Instagram.AuthCodeURL(state))
}

func InstagramOAuthCallback(e *core.RequestEvent, deps *Deps) error {
	q := e.Request.URL.Query()
	if msg := q.Get("error_description"); msg != "" {
		return connectRedirect(e, deps, "error", msg)
	}
	state, err := ParseState(deps.Config.Auth.JWTSecret, q.Get("state"), string(models.PlatformInstagram))
	if err != nil || q.Get("code") == "" {
		return connectRedirect(e, deps, "error", "Missing authorization code or state")
	}

	ctx := e.Request.Context()
	token, err := deps.Instagram.Exchange(ctx, q.Get("code"))
	if err != nil {
		deps.Logger.Error("Instagram token exchange failed", helpers.LogAttrs(err)...)
		return connectRedirect(e, deps, "error", "Failed to connect Instagram account")
	}
	profile, err := deps.Instagram.BusinessAccount(ctx, token.AccessToken)
	if err != nil {
		deps.Logger.Error("Instagram account rejected", helpers.LogAttrs(err)...)
		msg := "Failed to load Instagram account"
		if appErr, ok := helpers.AsAppError(err); ok {
			msg = appErr.Message
		}
		return connectRedirect(e, deps, "error", msg)
	}

	_, err = deps.Accounts.Upsert(ctx, tokens.UpsertInput{
		WorkspaceID: state.WorkspaceID,
		Platform:    models.PlatformInstagram,
		AccountName: profile.Username,
		AccountID:   profile.ID,
		AccessToken: token.AccessToken,
		ExpiresAt:   tokens.ExpiresAt(token),
	})
	if err != nil {
		deps.Logger.Error("Failed to save Instagram account", helpers.LogAttrs(err)...)
		return connectRedirect(e, deps, "error", "Failed to save Instagram account")
	}
	return connectRedirect(e, deps, "success", "Instagram Business account connected successfully")
}

func connectRedirect(e *core.RequestEvent, deps *Deps, key, message string) error {
	target := strings.TrimRight(deps.Config.Auth.RedirectHost, "/") + "/social?" + key + "=" + url.QueryEscape(message)
	return e.Redirect(http.StatusTemporaryRedirect, target)
}
