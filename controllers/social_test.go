package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"content-studio/config"
	"content-studio/helpers"
	"content-studio/models"
	"content-studio/publishing"
	"content-studio/schedule"
	"content-studio/tasks"
	"content-studio/testutil"
	"content-studio/tokens"
	"content-studio/workflow"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubPublisher struct {
	platform models.Platform
	err      error
	calls    *atomic.Int32
}

func (s stubPublisher) Platform() models.Platform { return s.platform }

func (s stubPublisher) Publish(context.Context, *models.SocialAccount, models.PublishRequest) (string, error) {
	if s.calls != nil {
		s.calls.Add(1)
	}
	if s.err != nil {
		return "", s.err
	}
	return string(s.platform) + "-post-id", nil
}

type urlStore struct{}

func (urlStore) PublicURL(_ context.Context, fileURL string) (string, error) {
	return "https://studio.example.com/api/files/public" + fileURL, nil
}

func (urlStore) Fetch(context.Context, string) (io.ReadCloser, int64, error) {
	return io.NopCloser(strings.NewReader("")), 0, nil
}

type env struct {
	db      *gorm.DB
	deps    *Deps
	ws      string
	manager workflow.Actor
}

func newEnv(t *testing.T, publishers ...tasks.Publisher) *env {
	db := testutil.NewTestDB(t)
	ws := uuid.NewString()
	logger := helpers.DiscardLogger()
	engine := workflow.NewEngine(db, logger)
	accounts := tokens.NewStore(db, logger)
	orchestrator := publishing.NewOrchestrator(accounts, tasks.NewRegistry(publishers...), logger)

	deps := &Deps{
		Config:    &config.Config{Auth: config.AuthConfig{JWTSecret: testSecret}},
		Logger:    logger,
		Members:   workflow.NewMembers(db),
		Engine:    engine,
		Accounts:  accounts,
		Publisher: orchestrator,
		Queue:     schedule.NewQueue(db, engine, orchestrator, urlStore{}, schedule.NewLocalLock(), config.SchedulerConfig{}, logger),
		Files:     urlStore{},
	}
	managerID := testutil.AddMember(t, db, ws, models.RoleSocialMediaManager)
	return &env{
		db:      db,
		deps:    deps,
		ws:      ws,
		manager: workflow.Actor{UserID: managerID, WorkspaceID: ws, Role: models.RoleSocialMediaManager},
	}
}

func newEvent(method, target, body string, actor *workflow.Actor) (*core.RequestEvent, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	e := &core.RequestEvent{}
	e.Request = req
	e.Response = rec
	if actor != nil {
		e.Set(actorKey, *actor)
	}
	return e, rec
}

type publishEnvelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Results       []models.PublishResult `json:"results"`
		Successful    int                    `json:"successful"`
		Failed        int                    `json:"failed"`
		StatusUpdated bool                   `json:"statusUpdated"`
	} `json:"data"`
}

func TestPublishContentPublishesItemWhenAllSucceed(t *testing.T) {
	env := newEnv(t,
		stubPublisher{platform: models.PlatformFacebook},
		stubPublisher{platform: models.PlatformYouTube},
	)
	item := testutil.CreateContent(t, env.db, env.ws, env.manager.UserID, models.StatusApproved)
	testutil.CreateAccount(t, env.db, env.ws, models.PlatformFacebook, nil)
	testutil.CreateAccount(t, env.db, env.ws, models.PlatformYouTube, nil)

	body := `{"contentId":"` + item.ID + `","platforms":["facebook","youtube"]}`
	e, rec := newEvent(http.MethodPost, "/api/v1/social/publish", body, &env.manager)
	require.NoError(t, PublishContent(e, env.deps))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp publishEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Status)
	assert.Equal(t, "Published to 2/2 platform(s)", resp.Message)
	assert.Equal(t, 2, resp.Data.Successful)
	assert.True(t, resp.Data.StatusUpdated)
	require.Len(t, resp.Data.Results, 2)
	assert.Equal(t, "facebook-post-id", resp.Data.Results[0].PostID)

	var reloaded models.ContentItem
	require.NoError(t, env.db.Take(&reloaded, "id = ?", item.ID).Error)
	assert.Equal(t, models.StatusPublished, reloaded.Status)
}

func TestPublishContentPartialFailureStillAnswers200(t *testing.T) {
	env := newEnv(t,
		stubPublisher{platform: models.PlatformFacebook},
		stubPublisher{platform: models.PlatformTikTok, err: helpers.NewError(helpers.KindUpstreamPermanent, "Video file is too large for TikTok").WithCode("file_format_check_failed")},
	)
	item := testutil.CreateContent(t, env.db, env.ws, env.manager.UserID, models.StatusApproved)
	testutil.CreateAccount(t, env.db, env.ws, models.PlatformFacebook, nil)
	testutil.CreateAccount(t, env.db, env.ws, models.PlatformTikTok, nil)

	body := `{"contentId":"` + item.ID + `","platforms":["facebook","tiktok"],"caption":"Override caption"}`
	e, rec := newEvent(http.MethodPost, "/api/v1/social/publish", body, &env.manager)
	require.NoError(t, PublishContent(e, env.deps))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp publishEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Status)
	assert.Equal(t, "Published to 1/2 platform(s)", resp.Message)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.False(t, resp.Data.StatusUpdated)
	assert.Equal(t, "Video file is too large for TikTok", resp.Data.Results[1].Error)
	assert.Equal(t, "file_format_check_failed", resp.Data.Results[1].ErrorCode)

	var reloaded models.ContentItem
	require.NoError(t, env.db.Take(&reloaded, "id = ?", item.ID).Error)
	assert.Equal(t, models.StatusApproved, reloaded.Status)
}

func TestPublishContentChecksWorkflowPermission(t *testing.T) {
	calls := &atomic.Int32{}
	env := newEnv(t, stubPublisher{platform: models.PlatformFacebook, calls: calls})
	testutil.CreateAccount(t, env.db, env.ws, models.PlatformFacebook, nil)
	writer := workflow.Actor{UserID: testutil.AddMember(t, env.db, env.ws, models.RoleScriptWriter), WorkspaceID: env.ws, Role: models.RoleScriptWriter}

	draft := testutil.CreateContent(t, env.db, env.ws, writer.UserID, models.StatusDraft)
	approved := testutil.CreateContent(t, env.db, env.ws, writer.UserID, models.StatusApproved)
	scheduled := testutil.CreateContent(t, env.db, env.ws, writer.UserID, models.StatusScheduled)

	cases := map[string]struct {
		actor   workflow.Actor
		content *models.ContentItem
		kind    helpers.ErrorKind
	}{
		"writer publishes own draft":  {writer, draft, helpers.KindForbiddenTransition},
		"manager publishes draft":     {env.manager, draft, helpers.KindForbiddenTransition},
		"writer publishes approved":   {writer, approved, helpers.KindAccessDenied},
		"manager publishes scheduled": {env.manager, scheduled, helpers.KindAccessDenied},
	}
	for name, tc := range cases {
		body := `{"contentId":"` + tc.content.ID + `","platforms":["facebook"]}`
		e, rec := newEvent(http.MethodPost, "/api/v1/social/publish", body, &tc.actor)
		require.NoError(t, PublishContent(e, env.deps), name)
		assert.Equal(t, http.StatusForbidden, rec.Code, name)
		assert.Contains(t, rec.Body.String(), `"status":false`, name)
	}
	assert.Zero(t, calls.Load(), "no platform may be called")

	var statuses []models.ContentStatus
	require.NoError(t, env.db.Model(&models.ContentItem{}).Where("workspace_id = ?", env.ws).Order("status").Pluck("status", &statuses).Error)
	assert.Equal(t, []models.ContentStatus{models.StatusApproved, models.StatusDraft, models.StatusScheduled}, statuses)

	owner := workflow.Actor{UserID: testutil.AddMember(t, env.db, env.ws, models.RoleOwner), WorkspaceID: env.ws, Role: models.RoleOwner}
	e, rec := newEvent(http.MethodPost, "/api/v1/social/publish", `{"contentId":"`+scheduled.ID+`","platforms":["facebook"]}`, &owner)
	require.NoError(t, PublishContent(e, env.deps))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int32(1), calls.Load())
}

func TestPublishContentRejectsBadRequests(t *testing.T) {
	env := newEnv(t, stubPublisher{platform: models.PlatformFacebook})
	item := testutil.CreateContent(t, env.db, env.ws, env.manager.UserID, models.StatusApproved)
	require.NoError(t, env.db.Model(item).Update("caption", "").Error)

	cases := map[string]struct {
		body   string
		status int
	}{
		"missing content":  {`{"platforms":["facebook"]}`, http.StatusBadRequest},
		"no platforms":     {`{"contentId":"` + item.ID + `"}`, http.StatusBadRequest},
		"unknown content":  {`{"contentId":"` + uuid.NewString() + `","platforms":["facebook"]}`, http.StatusNotFound},
		"empty caption":    {`{"contentId":"` + item.ID + `","platforms":["facebook"],"caption":"   "}`, http.StatusBadRequest},
		"schedule in past": {`{"contentId":"` + item.ID + `","platforms":["facebook"],"caption":"hi","scheduledAt":"2001-01-01T00:00:00Z"}`, http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e, rec := newEvent(http.MethodPost, "/api/v1/social/publish", tc.body, &env.manager)
			require.NoError(t, PublishContent(e, env.deps))
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	e, rec := newEvent(http.MethodPost, "/api/v1/social/publish", `{}`, nil)
	require.NoError(t, PublishContent(e, env.deps))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublishContentSchedules(t *testing.T) {
	env := newEnv(t)
	item := testutil.CreateContent(t, env.db, env.ws, env.manager.UserID, models.StatusApproved)

	body := `{"contentId":"` + item.ID + `","platforms":["instagram"],"scheduledAt":"2099-01-01T09:00:00Z"}`
	e, rec := newEvent(http.MethodPost, "/api/v1/social/publish", body, &env.manager)
	require.NoError(t, PublishContent(e, env.deps))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Post scheduled for 1 platform(s)", resp.Message)

	var reloaded models.ContentItem
	require.NoError(t, env.db.Take(&reloaded, "id = ?", item.ID).Error)
	assert.Equal(t, models.StatusScheduled, reloaded.Status)
}

func TestUpdateContentStatusEnforcesExpectedStatus(t *testing.T) {
	env := newEnv(t)
	item := testutil.CreateContent(t, env.db, env.ws, env.manager.UserID, models.StatusEdited)

	e, rec := newEvent(http.MethodPatch, "/api/v1/content/"+item.ID+"/status", `{"status":"approved","expectedStatus":"review"}`, &env.manager)
	e.Request.SetPathValue("id", item.ID)
	require.NoError(t, UpdateContentStatus(e, env.deps))
	assert.Equal(t, http.StatusConflict, rec.Code)

	e, rec = newEvent(http.MethodPatch, "/api/v1/content/"+item.ID+"/status", `{"status":"approved"}`, &env.manager)
	e.Request.SetPathValue("id", item.ID)
	require.NoError(t, UpdateContentStatus(e, env.deps))
	assert.Equal(t, http.StatusOK, rec.Code)

	e, rec = newEvent(http.MethodPatch, "/api/v1/content/"+item.ID+"/status", `{"status":"draft"}`, &env.manager)
	e.Request.SetPathValue("id", item.ID)
	require.NoError(t, UpdateContentStatus(e, env.deps))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDisconnectAccountRequiresManager(t *testing.T) {
	env := newEnv(t)
	account := testutil.CreateAccount(t, env.db, env.ws, models.PlatformYouTube, nil)
	writer := workflow.Actor{UserID: testutil.AddMember(t, env.db, env.ws, models.RoleScriptWriter), WorkspaceID: env.ws, Role: models.RoleScriptWriter}

	e, rec := newEvent(http.MethodDelete, "/api/v1/social/accounts/"+account.ID, "", &writer)
	e.Request.SetPathValue("id", account.ID)
	require.NoError(t, DisconnectAccount(e, env.deps))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	e, rec = newEvent(http.MethodDelete, "/api/v1/social/accounts/"+account.ID, "", &env.manager)
	e.Request.SetPathValue("id", account.ID)
	require.NoError(t, DisconnectAccount(e, env.deps))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := env.deps.Accounts.GetValidToken(context.Background(), env.ws, models.PlatformYouTube)
	assert.Equal(t, helpers.KindNoActiveAccount, helpers.KindOf(err))
}
