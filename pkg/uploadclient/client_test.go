package uploadclient

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/materials-commons/mcupload/pkg/chunked"
	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/materials-commons/mcupload/pkg/mcdb/stor"
	"github.com/materials-commons/mcupload/pkg/mcuploadd/webapi"
	"github.com/materials-commons/mcupload/pkg/sink"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	url     string
	uploads *stor.InMemoryChunkedUploadStor
	fs      afero.Fs
}

func startServer(t *testing.T) *testServer {
	uploads := stor.NewInMemoryChunkedUploadStor()
	fs := afero.NewMemMapFs()
	s := sink.NewRegistry(sink.NewFsProvider(fs, "chunked_uploads"))
	cfg := chunked.DefaultConfig()

	controller := webapi.NewChunkedUploadController(
		chunked.NewUploadCoordinator(cfg, uploads, s, nil),
		chunked.NewCompletionCoordinator(cfg, uploads, s, nil),
	)

	e := echo.New()
	g := e.Group("/api/chunked-uploads")
	g.POST("", controller.UploadChunk)
	g.POST("/complete", controller.CompleteUpload)
	g.GET("/:upload_id", controller.GetUploadStatus)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return &testServer{url: server.URL, uploads: uploads, fs: fs}
}

func (s *testServer) contents(t *testing.T, uploadID string) []byte {
	upload, err := s.uploads.GetChunkedUploadByUploadID(uploadID)
	require.NoError(t, err)
	_, p, err := sink.ParseRef(upload.StorageRef)
	require.NoError(t, err)
	data, err := afero.ReadFile(s.fs, p)
	require.NoError(t, err)
	return data
}

func writeTestFile(t *testing.T, size int) (string, []byte) {
	data := bytes.Repeat([]byte("0123456789"), size/10+1)[:size]
	path := filepath.Join(t.TempDir(), "test data.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path, data
}

func TestUploadFileInChunks(t *testing.T) {
	server := startServer(t)
	path, data := writeTestFile(t, 1000)

	client := NewClient(server.url, "")
	client.ChunkSize = 64

	uploadID, err := client.UploadFile(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, data, server.contents(t, uploadID))

	status, err := client.Status(context.Background(), uploadID)
	require.NoError(t, err)
	assert.Equal(t, mcmodel.ChunkedUploadStatusComplete, status.Status)
	assert.Equal(t, int64(1000), status.Offset)
	assert.Equal(t, "test data.bin", status.Filename)
	assert.NotNil(t, status.CompletedAt)
}

func TestResumeUpload(t *testing.T) {
	ctx := context.Background()
	server := startServer(t)
	path, data := writeTestFile(t, 300)

	client := NewClient(server.url, "")
	client.ChunkSize = 100

	resp, err := client.SendChunk(ctx, "", "test data.bin", data[:100], 0, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(100), resp.Offset)

	uploadID, err := client.UploadFile(ctx, path, resp.UploadID)
	require.NoError(t, err)
	assert.Equal(t, resp.UploadID, uploadID)
	assert.Equal(t, data, server.contents(t, uploadID))
}

func TestUploadFollowsServerOffset(t *testing.T) {
	ctx := context.Background()
	server := startServer(t)
	_, data := writeTestFile(t, 250)

	client := NewClient(server.url, "")
	client.ChunkSize = 50

	resp, err := client.SendChunk(ctx, "", "f.bin", data[:50], 0, 250)
	require.NoError(t, err)

	uploadID, err := client.upload(ctx, bytes.NewReader(data), "f.bin", 250, resp.UploadID, 0)
	require.NoError(t, err)
	assert.Equal(t, data, server.contents(t, uploadID))

	result, err := client.Complete(ctx, uploadID, 250)
	require.NoError(t, err)
	assert.True(t, result.SizeChecked)
}

func TestErrorResponses(t *testing.T) {
	ctx := context.Background()
	server := startServer(t)
	client := NewClient(server.url, "")

	_, err := client.Status(ctx, "no-such-upload")
	require.ErrorIs(t, err, ErrUploadAPI)
	require.NotNil(t, client.LastError())
	assert.Equal(t, http.StatusNotFound, client.LastError().Status)

	resp, err := client.SendChunk(ctx, "", "f.bin", []byte("abc"), 0, 3)
	require.NoError(t, err)
	assert.Nil(t, client.LastError())

	_, err = client.Complete(ctx, resp.UploadID, 4)
	require.Error(t, err)
	require.NotNil(t, client.LastError().Size)
	assert.Equal(t, int64(3), *client.LastError().Size)
	assert.Equal(t, "Expected file size does not match", client.LastError().Detail)
}

func TestUploadEmptyFile(t *testing.T) {
	server := startServer(t)
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := NewClient(server.url, "").UploadFile(context.Background(), path, "")
	assert.Error(t, err)
}
