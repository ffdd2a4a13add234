package cmd

import (
	"github.com/labstack/echo/v4"
	"github.com/materials-commons/mcupload/pkg/chunked"
	"github.com/materials-commons/mcupload/pkg/mcuploadd/progress"
	"github.com/materials-commons/mcupload/pkg/mcuploadd/webapi"
	"github.com/materials-commons/mcupload/pkg/mcuploadd/webapi/apimiddleware"
)

type RouteOpts struct {
	uploads    *chunked.UploadCoordinator
	completion *chunked.CompletionCoordinator
	hub        *progress.Hub
	apikeyAuth apimiddleware.APIKeyConfig
}

func setupRoutes(e *echo.Echo, opts RouteOpts) {
	g := e.Group("/api/chunked-uploads")
	g.Use(apimiddleware.APIKeyAuth(opts.apikeyAuth))

	controller := webapi.NewChunkedUploadController(opts.uploads, opts.completion)

	g.POST("", controller.UploadChunk)
	g.POST("/complete", controller.CompleteUpload)
	g.GET("/progress", opts.hub.ServeWS)
	g.GET("/:upload_id", controller.GetUploadStatus)
}
