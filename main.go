package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"content-studio/config"
	"content-studio/controllers"
	"content-studio/helpers"
	"content-studio/models"
	"content-studio/publishing"
	"content-studio/schedule"
	"content-studio/storage"
	"content-studio/tasks"
	"content-studio/tokens"
	"content-studio/workflow"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

var app *pocketbase.PocketBase

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	app = helpers.CreateApp(cfg.AppOptions())

	var deps *controllers.Deps
	app.OnBootstrap().BindFunc(func(e *core.BootstrapEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		deps, err = buildDeps(context.Background(), cfg, app)
		return err
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		controllers.SetupSystemRoutes(se)
		controllers.SetupContentRoutes(se, deps)
		controllers.SetupSocialRoutes(se, deps)
		controllers.SetupConnectRoutes(se, deps)

		app.Cron().MustAdd("publish-scheduled-posts", cfg.Scheduler.Cron, func() {
			controllers.PublishScheduledPosts(deps)
		})
		return se.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

func buildDeps(ctx context.Context, cfg *config.Config, app *pocketbase.PocketBase) (*controllers.Deps, error) {
	logger := app.Logger()

	db, err := models.ConnectDatabase(cfg.Database, cfg.Env)
	if err != nil {
		return nil, err
	}

	var lock schedule.Lock = schedule.NewLocalLock()
	if cfg.Redis.Enabled() {
		rdb, err := models.ConnectRedis(ctx, cfg.Redis, cfg.Env)
		if err != nil {
			return nil, err
		}
		lock = schedule.NewDistLock(rdb)
	} else {
		logger.Warn("REDIS_HOST not set, scheduler lease is local to this instance")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	files, err := storage.New(ctx, cfg.Storage, client)
	if err != nil {
		return nil, err
	}

	accounts := tokens.NewStore(db, logger)
	refresh := tokens.NewManager(accounts, logger,
		tokens.NewGoogleRefresher(cfg.YouTube, client),
		tokens.NewFacebookRefresher(cfg.Facebook, client, logger),
		tokens.NewInstagramRefresher(cfg.Instagram, client, logger),
		tokens.NewTikTokRefresher(cfg.TikTok, client, logger),
	)

	engine := workflow.NewEngine(db, logger)
	orchestrator := publishing.NewOrchestrator(accounts, tasks.DefaultRegistry(cfg, files, logger), logger)
	queue := schedule.NewQueue(db, engine, orchestrator, files, lock, cfg.Scheduler, logger)

	return &controllers.Deps{
		Config:     cfg,
		Logger:     logger,
		HTTPClient: client,
		Members:    workflow.NewMembers(db),
		Engine:     engine,
		Accounts:   accounts,
		Refresh:    refresh,
		Instagram:  tokens.NewInstagramAuth(cfg.Instagram, cfg.APIHost+"/api/v1/auth/instagram/callback", client, logger),
		Publisher:  orchestrator,
		Queue:      queue,
		Files:      files,
	}, nil
}
