package helpers

import (
	"time"

	"github.com/pocketbase/pocketbase"
)

// AppOptions are the PocketBase settings the API server exposes through env.
type AppOptions struct {
	Prod         bool
	DataDir      string
	QueryTimeout time.Duration
}

// CreateApp builds the PocketBase app that serves the API and runs the
// publish cron. Outside prod the app starts in dev mode with the banner on.
func CreateApp(opts AppOptions) *pocketbase.PocketBase {
	return pocketbase.NewWithConfig(pocketbase.Config{
		HideStartBanner:     opts.Prod,
		DefaultDev:          !opts.Prod,
		DefaultDataDir:      opts.DataDir,
		DefaultQueryTimeout: opts.QueryTimeout,
	})
}
