package controllers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"content-studio/config"
	"content-studio/helpers"
	"content-studio/schedule"
	"content-studio/storage"
	"content-studio/tokens"
	"content-studio/workflow"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/pocketbase/pocketbase/core"
)

const (
	actorKey        = "actor"
	workspaceHeader = "X-Workspace-ID"
)

// Deps carries the services every route needs.
type Deps struct {
	Config     *config.Config
	Logger     *slog.Logger
	HTTPClient *http.Client
	Members    *workflow.Members
	Engine     *workflow.Engine
	Accounts   *tokens.Store
	Refresh    *tokens.Manager
	Instagram  *tokens.InstagramAuth
	Publisher  schedule.MultiPublisher
	Queue      *schedule.Queue
	Files      storage.Store
}

// Claims is the bearer token issued by the auth service.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// StateClaims travel through the OAuth consent screen in the state parameter.
type StateClaims struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Platform    string `json:"platform"`
	jwt.RegisteredClaims
}

func ParseBearer(header, secret string) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errors.New("missing bearer token")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Wrap(err, "parse bearer token")
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}

func SignState(secret string, ttl time.Duration, actor workflow.Actor, platform string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, StateClaims{
		UserID:      actor.UserID,
		WorkspaceID: actor.WorkspaceID,
		Platform:    platform,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   "oauth_state",
		},
	})
	return token.SignedString([]byte(secret))
}

// ParseState verifies a state issued by SignState for platform.
func ParseState(secret, raw, platform string) (*StateClaims, error) {
	claims := &StateClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Wrap(err, "parse oauth state")
	}
	if !token.Valid || claims.Subject != "oauth_state" {
		return nil, errors.New("invalid oauth state")
	}
	if claims.Platform != platform || claims.WorkspaceID == "" {
		return nil, errors.Errorf("oauth state was issued for %q", claims.Platform)
	}
	return claims, nil
}

// RequireActor resolves the caller from the Authorization header and the
// active workspace from the X-Workspace-ID header.
func RequireActor(deps *Deps) func(e *core.RequestEvent) error {
	return requireActor(deps, false)
}

// RequireBrowserActor also accepts the token and workspace as query
// parameters. Browser redirects cannot set headers, so only the connect start
// routes use it.
func RequireBrowserActor(deps *Deps) func(e *core.RequestEvent) error {
	return requireActor(deps, true)
}

func requireActor(deps *Deps, allowQuery bool) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		query := e.Request.URL.Query()
		header := e.Request.Header.Get("Authorization")
		if header == "" && allowQuery && query.Get("token") != "" {
			header = "Bearer " + query.Get("token")
		}
		claims, err := ParseBearer(header, deps.Config.Auth.JWTSecret)
		if err != nil {
			return e.JSON(http.StatusUnauthorized, helpers.ErrorResponse{Status: false, Message: "Authentication required"})
		}

		workspaceID := e.Request.Header.Get(workspaceHeader)
		if workspaceID == "" && allowQuery {
			workspaceID = query.Get("workspace")
		}
		if workspaceID == "" {
			return helpers.Error(e, helpers.Validation("%s header is required", workspaceHeader))
		}

		actor, err := deps.Members.Actor(e.Request.Context(), workspaceID, claims.UserID)
		if err != nil {
			return helpers.Error(e, err)
		}
		e.Set(actorKey, actor)
		return e.Next()
	}
}

func actorFrom(e *core.RequestEvent) (workflow.Actor, bool) {
	actor, ok := e.Get(actorKey).(workflow.Actor)
	return actor, ok
}
