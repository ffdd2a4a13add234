/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"time"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/materials-commons/mcupload/pkg/chunked"
	"github.com/materials-commons/mcupload/pkg/config"
	"github.com/materials-commons/mcupload/pkg/lock"
	"github.com/materials-commons/mcupload/pkg/mcdb"
	"github.com/materials-commons/mcupload/pkg/mcdb/stor"
	"github.com/materials-commons/mcupload/pkg/mcuploadd/progress"
	"github.com/materials-commons/mcupload/pkg/mcuploadd/webapi/apimiddleware"
	"github.com/spf13/cobra"
)

var reapInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chunked upload API server",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		e.Use(middleware.Recover())

		db := mcdb.MustConnectToDB(cfg)
		stors := stor.NewGormStors(db)
		s, closeSink := mustSetupSink(cfg)
		defer closeSink()

		uploadCfg := chunked.LoadConfig(cfg)
		hub := progress.NewHub(progress.NewUploadProgressCache(), uploadCfg.ExpirationDelta)
		apikeyCache := apimiddleware.NewAPIKeyCache(stors.UserStor)
		inFlight := lock.NewKeyLocker[string]()

		setupRoutes(e, RouteOpts{
			uploads:    chunked.NewUploadCoordinator(uploadCfg, stors.ChunkedUploadStor, s, hub).WithInFlight(inFlight),
			completion: chunked.NewCompletionCoordinator(uploadCfg, stors.ChunkedUploadStor, s, hub).WithInFlight(inFlight),
			hub:        hub,
			apikeyAuth: apimiddleware.APIKeyConfig{
				GetUserByAPIKey: apikeyCache.GetUserByAPIKey,
				RequireIdentity: cfg.GetBoolKeyWithDefault(config.KeyRequireIdentity, true),
			},
		})

		reaper := chunked.NewReaper(stors.ChunkedUploadStor, s, nil).WithHooks(hub)
		stopReaper := reaper.StartPeriodicSweep(uploadCfg.ExpirationDelta, reapInterval)
		defer stopReaper()

		port := cfg.GetKeyWithDefault(config.KeyPort, config.DefaultPort)
		log.Infof("mcuploadd listening on :%s (record scope %s, expiration %s)", port, uploadCfg.RecordScope, uploadCfg.ExpirationDelta)
		if err := e.Start(":" + port); err != nil {
			log.Fatalf("Unable to start server: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&reapInterval, "reap-interval", 0, "remove expired uploads this often, 0 disables")
}
