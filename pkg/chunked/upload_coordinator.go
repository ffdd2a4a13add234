package chunked

import (
	"context"
	"errors"
	"time"

	"github.com/materials-commons/mcupload/pkg/clog"
	"github.com/materials-commons/mcupload/pkg/lock"
	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/materials-commons/mcupload/pkg/mcdb/stor"
	"github.com/materials-commons/mcupload/pkg/sink"
)

// UploadCoordinator handles chunk requests. Nothing waits on another
// request: a second request for an upload already being written by this
// process fails right away, and overlaps between processes are caught by
// the offset and sink size checks in Appender.
type UploadCoordinator struct {
	cfg      Config
	uploads  stor.ChunkedUploadStor
	sink     sink.Sink
	hooks    Hooks
	appender *Appender
	inFlight *lock.KeyLocker[string]
	now      func() time.Time
}

func NewUploadCoordinator(cfg Config, uploads stor.ChunkedUploadStor, s sink.Sink, hooks Hooks) *UploadCoordinator {
	hooks = hooksOrNoop(hooks)
	return &UploadCoordinator{
		cfg:      cfg,
		uploads:  uploads,
		sink:     s,
		hooks:    hooks,
		appender: NewAppender(s, hooks),
		inFlight: lock.NewKeyLocker[string](),
		now:      time.Now,
	}
}

// WithInFlight makes the coordinator share its in-flight set, normally with
// the CompletionCoordinator for the same uploads.
func (c *UploadCoordinator) WithInFlight(inFlight *lock.KeyLocker[string]) *UploadCoordinator {
	c.inFlight = inFlight
	return c
}

// HandleChunk validates and appends one chunk. Checks run cheapest first:
// the range and size limit, then the record's offset, then the sink's
// actual size. A new upload's record is only written once its first chunk
// is in the sink, if anything fails before that the allocated sink object
// is removed.
func (c *UploadCoordinator) HandleChunk(ctx context.Context, req ChunkRequest) (view *RecordView, err error) {
	if req.Chunk == nil {
		return nil, ErrNoChunk()
	}

	var upload *mcmodel.ChunkedUpload
	isNew := req.UploadID == ""

	if isNew {
		if upload, err = c.newUpload(ctx, req); err != nil {
			return nil, err
		}

		defer func() {
			if err != nil {
				c.releaseSink(ctx, upload)
			}
		}()
	} else {
		locked := c.inFlight.TryAcquireLock(req.UploadID)
		if locked {
			defer c.inFlight.ReleaseLock(req.UploadID)
		}

		if upload, err = findUpload(c.uploads, c.cfg.RecordScope, req.UploadID, req.User); err != nil {
			return nil, err
		}

		if upload.IsExpired(c.now(), c.cfg.ExpirationDelta) {
			return nil, errGone()
		}

		if upload.IsComplete() {
			return nil, errAlreadyComplete()
		}

		if !locked {
			return nil, inFlightError(ctx, c.sink, upload)
		}
	}

	r, err := chunkRange(req.ContentRange, int64(len(req.Chunk.Data)), c.cfg.RequireRangeHeader)
	if err != nil {
		return nil, err
	}

	if c.cfg.MaxUploadBytes > 0 && r.Total > c.cfg.MaxUploadBytes {
		return nil, errSizeLimitExceeded(c.cfg.MaxUploadBytes)
	}

	fromOffset := upload.Offset
	if err = c.appender.Append(ctx, upload, req.Chunk, r); err != nil {
		return nil, err
	}

	if err = c.persist(ctx, upload, isNew, fromOffset); err != nil {
		return nil, err
	}

	clog.ForUpload(upload.UploadID).Debugf("Accepted bytes %d-%d/%d", r.Start, r.End, r.Total)
	c.hooks.OnChunkPersisted(ctx, upload)

	return newRecordView(upload, c.cfg.ExpirationDelta), nil
}

func (c *UploadCoordinator) newUpload(ctx context.Context, req ChunkRequest) (*mcmodel.ChunkedUpload, error) {
	uploadID, err := stor.NewUploadID()
	if err != nil {
		return nil, recordStoreError(err, "Unable to create upload")
	}

	ref, err := c.sink.Allocate(ctx, uploadID, req.Chunk.Name)
	if err != nil {
		return nil, storageError(err, "Unable to create upload")
	}

	return &mcmodel.ChunkedUpload{
		UploadID:   uploadID,
		Filename:   req.Chunk.Name,
		StorageRef: ref,
		Status:     mcmodel.ChunkedUploadStatusUploading,
		OwnerID:    userIDOf(req.User),
		CreatedAt:  c.now(),
	}, nil
}

// persist writes the new offset. An existing upload only moves if nobody
// completed it or moved its offset while the chunk was being appended.
func (c *UploadCoordinator) persist(ctx context.Context, upload *mcmodel.ChunkedUpload, isNew bool, fromOffset int64) error {
	if isNew {
		if _, err := c.uploads.CreateChunkedUpload(upload); err != nil {
			return recordStoreError(err, "Unable to save upload")
		}

		return nil
	}

	err := c.uploads.UpdateChunkedUploadOffset(upload, fromOffset)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stor.ErrAlreadyComplete):
		return errAlreadyComplete()
	case errors.Is(err, stor.ErrNotFound):
		return errNotFound()
	case errors.Is(err, stor.ErrOffsetChanged):
		return inFlightError(ctx, c.sink, upload)
	default:
		return recordStoreError(err, "Unable to save upload")
	}
}

// inFlightError reports a request that overlapped another one for the same
// upload.
func inFlightError(ctx context.Context, s sink.Sink, upload *mcmodel.ChunkedUpload) error {
	size, err := s.Size(ctx, upload.StorageRef)
	if err != nil {
		return storageError(err, "Unable to read the size of the upload")
	}

	return errConflictingWrite(size)
}

func (c *UploadCoordinator) releaseSink(ctx context.Context, upload *mcmodel.ChunkedUpload) {
	if err := c.sink.Delete(ctx, upload.StorageRef); err != nil {
		clog.ForUpload(upload.UploadID).Errorf("Unable to release %s: %s", upload.StorageRef, err)
	}
}

// Status reports an upload's progress using the same visibility rules as
// HandleChunk. Expired uploads are still reported until they are reaped.
func (c *UploadCoordinator) Status(_ context.Context, uploadID string, user *mcmodel.User) (*UploadStatus, error) {
	if uploadID == "" {
		return nil, ErrMissingUploadID()
	}

	upload, err := findUpload(c.uploads, c.cfg.RecordScope, uploadID, user)
	if err != nil {
		return nil, err
	}

	return &UploadStatus{
		UploadID:    upload.UploadID,
		Filename:    upload.Filename,
		Offset:      upload.Offset,
		Status:      upload.Status,
		ExpiresAt:   upload.ExpiresAt(c.cfg.ExpirationDelta),
		CompletedAt: upload.CompletedAt,
	}, nil
}
