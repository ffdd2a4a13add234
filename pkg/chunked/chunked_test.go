package chunked

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/materials-commons/mcupload/pkg/lock"
	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/materials-commons/mcupload/pkg/mcdb/stor"
	"github.com/materials-commons/mcupload/pkg/sink"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	uploads  *stor.InMemoryChunkedUploadStor
	fs       afero.Fs
	sink     *sink.FsProvider
	cfg      Config
	inFlight *lock.KeyLocker[string]
}

func newTestEnv() *testEnv {
	fs := afero.NewMemMapFs()
	return &testEnv{
		uploads:  stor.NewInMemoryChunkedUploadStor(),
		fs:       fs,
		sink:     sink.NewFsProvider(fs, "chunked_uploads/%Y/%m/%d"),
		cfg:      DefaultConfig(),
		inFlight: lock.NewKeyLocker[string](),
	}
}

func (e *testEnv) uploadCoordinator(hooks Hooks) *UploadCoordinator {
	return NewUploadCoordinator(e.cfg, e.uploads, e.sink, hooks).WithInFlight(e.inFlight)
}

func (e *testEnv) completionCoordinator(hooks Hooks) *CompletionCoordinator {
	return NewCompletionCoordinator(e.cfg, e.uploads, e.sink, hooks).WithInFlight(e.inFlight)
}

func (e *testEnv) sinkPath(t *testing.T, uploadID string) string {
	upload, err := e.uploads.GetChunkedUploadByUploadID(uploadID)
	require.NoError(t, err)
	_, p, err := sink.ParseRef(upload.StorageRef)
	require.NoError(t, err)
	return p
}

func (e *testEnv) sinkContents(t *testing.T, uploadID string) string {
	contents, err := afero.ReadFile(e.fs, e.sinkPath(t, uploadID))
	require.NoError(t, err)
	return string(contents)
}

// spySink remembers what was allocated and deleted.
type spySink struct {
	sink.Sink
	mu        sync.Mutex
	allocated []string
	deleted   []string
	appendErr error
	deleteErr error
}

func (s *spySink) Allocate(ctx context.Context, uploadID, filename string) (string, error) {
	ref, err := s.Sink.Allocate(ctx, uploadID, filename)
	if err == nil {
		s.mu.Lock()
		s.allocated = append(s.allocated, ref)
		s.mu.Unlock()
	}
	return ref, err
}

func (s *spySink) Append(ctx context.Context, ref string, data []byte) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.Sink.Append(ctx, ref, data)
}

func (s *spySink) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, ref)
	s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Sink.Delete(ctx, ref)
}

func (e *testEnv) refExists(t *testing.T, ref string) bool {
	_, p, err := sink.ParseRef(ref)
	require.NoError(t, err)
	exists, err := afero.Exists(e.fs, p)
	require.NoError(t, err)
	return exists
}

func chunkReq(uploadID, contentRange, data string, user *mcmodel.User) ChunkRequest {
	return ChunkRequest{
		UploadID:     uploadID,
		Chunk:        &Chunk{Name: "test-file.txt", Data: []byte(data)},
		ContentRange: contentRange,
		User:         user,
	}
}

func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.True(t, errors.As(err, &e), "expected *Error, got %T: %s", err, err)
	require.Equalf(t, kind, e.Kind, "error: %s", err)
	return e
}

var ctx = context.Background()

type recordingHooks struct {
	mu        sync.Mutex
	reject    error
	validated int
	persisted []int64
	completed []string
	deleted   []string
}

func (h *recordingHooks) ValidateChunk(_ context.Context, _ *mcmodel.ChunkedUpload, _ *Chunk, _ ByteRange) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.validated++
	return h.reject
}

func (h *recordingHooks) OnChunkPersisted(_ context.Context, upload *mcmodel.ChunkedUpload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.persisted = append(h.persisted, upload.Offset)
}

func (h *recordingHooks) OnCompleted(_ context.Context, upload *mcmodel.ChunkedUpload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = append(h.completed, upload.UploadID)
}

func (h *recordingHooks) OnDeleted(_ context.Context, upload *mcmodel.ChunkedUpload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, upload.UploadID)
}

// validatingHooks runs validate for every chunk of an upload that already
// has a record.
type validatingHooks struct {
	NoopHooks
	validate func(ctx context.Context, upload *mcmodel.ChunkedUpload)
}

func (h *validatingHooks) ValidateChunk(ctx context.Context, upload *mcmodel.ChunkedUpload, _ *Chunk, _ ByteRange) error {
	if upload.Offset != 0 {
		h.validate(ctx, upload)
	}
	return nil
}
