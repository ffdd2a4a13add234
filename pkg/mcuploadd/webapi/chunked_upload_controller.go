package webapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/materials-commons/mcupload/pkg/chunked"
	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
)

// ChunkedUploadController exposes the upload and completion coordinators
// over HTTP.
type ChunkedUploadController struct {
	uploads    *chunked.UploadCoordinator
	completion *chunked.CompletionCoordinator
}

func NewChunkedUploadController(uploads *chunked.UploadCoordinator, completion *chunked.CompletionCoordinator) *ChunkedUploadController {
	return &ChunkedUploadController{uploads: uploads, completion: completion}
}

// UploadChunk takes a multipart form with the chunk in "file" and an
// optional "upload_id", the range comes from the Content-Range header.
func (c *ChunkedUploadController) UploadChunk(ctx echo.Context) error {
	chunk, err := readChunk(ctx)
	if err != nil {
		return errorResponse(ctx, err)
	}

	view, err := c.uploads.HandleChunk(ctx.Request().Context(), chunked.ChunkRequest{
		UploadID:     ctx.FormValue("upload_id"),
		Chunk:        chunk,
		ContentRange: ctx.Request().Header.Get("Content-Range"),
		User:         userFromContext(ctx),
	})

	if err != nil {
		return errorResponse(ctx, err)
	}

	return ctx.JSON(http.StatusOK, view)
}

func (c *ChunkedUploadController) CompleteUpload(ctx echo.Context) error {
	result, err := c.completion.Complete(ctx.Request().Context(), chunked.CompleteRequest{
		UploadID:     ctx.FormValue("upload_id"),
		User:         userFromContext(ctx),
		ExpectedSize: ctx.FormValue("expected_size"),
	})

	if err != nil {
		return errorResponse(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}

func (c *ChunkedUploadController) GetUploadStatus(ctx echo.Context) error {
	status, err := c.uploads.Status(ctx.Request().Context(), ctx.Param("upload_id"), userFromContext(ctx))
	if err != nil {
		return errorResponse(ctx, err)
	}

	return ctx.JSON(http.StatusOK, status)
}

// readChunk returns (nil, nil) when there is no "file" part so the
// coordinator reports the missing chunk.
func readChunk(ctx echo.Context) (*chunked.Chunk, error) {
	fh, err := ctx.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, nil
	case err != nil:
		return nil, chunked.ErrNoChunk()
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	return &chunked.Chunk{Name: fh.Filename, Data: data}, nil
}

func userFromContext(ctx echo.Context) *mcmodel.User {
	user, _ := ctx.Get("user").(*mcmodel.User)
	return user
}

func errorResponse(ctx echo.Context, err error) error {
	var e *chunked.Error
	if !errors.As(err, &e) {
		log.Errorf("%s %s failed: %s", ctx.Request().Method, ctx.Path(), err)
		return ctx.JSON(http.StatusInternalServerError, map[string]interface{}{"detail": "Internal server error"})
	}

	if e.Status >= http.StatusInternalServerError {
		log.Errorf("%s %s failed: %s", ctx.Request().Method, ctx.Path(), e)
	}

	return ctx.JSON(e.Status, e.Fields())
}
