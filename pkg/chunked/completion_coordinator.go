package chunked

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/materials-commons/mcupload/pkg/clog"
	"github.com/materials-commons/mcupload/pkg/lock"
	"github.com/materials-commons/mcupload/pkg/mcdb/stor"
	"github.com/materials-commons/mcupload/pkg/sink"
)

type CompletionCoordinator struct {
	cfg      Config
	uploads  stor.ChunkedUploadStor
	sink     sink.Sink
	hooks    Hooks
	inFlight *lock.KeyLocker[string]
	now      func() time.Time
}

func NewCompletionCoordinator(cfg Config, uploads stor.ChunkedUploadStor, s sink.Sink, hooks Hooks) *CompletionCoordinator {
	return &CompletionCoordinator{
		cfg:      cfg,
		uploads:  uploads,
		sink:     s,
		hooks:    hooksOrNoop(hooks),
		inFlight: lock.NewKeyLocker[string](),
		now:      time.Now,
	}
}

// WithInFlight shares the set of uploads being written with an
// UploadCoordinator, so an upload can't be completed while one of its
// chunks is still being appended.
func (c *CompletionCoordinator) WithInFlight(inFlight *lock.KeyLocker[string]) *CompletionCoordinator {
	c.inFlight = inFlight
	return c
}

// Complete marks an upload complete. When ExpectedSize is given it must
// match the number of bytes in the sink, otherwise the upload is left as is.
func (c *CompletionCoordinator) Complete(ctx context.Context, req CompleteRequest) (*CompletionResult, error) {
	if req.UploadID == "" {
		return nil, ErrMissingUploadID()
	}

	locked := c.inFlight.TryAcquireLock(req.UploadID)
	if locked {
		defer c.inFlight.ReleaseLock(req.UploadID)
	}

	upload, err := findUpload(c.uploads, c.cfg.RecordScope, req.UploadID, req.User)
	if err != nil {
		return nil, err
	}

	if upload.IsComplete() {
		return nil, errAlreadyComplete()
	}

	if !locked {
		return nil, inFlightError(ctx, c.sink, upload)
	}

	sizeChecked := false
	if req.ExpectedSize != "" {
		expected, err := strconv.ParseInt(strings.TrimSpace(req.ExpectedSize), 10, 64)
		if err != nil {
			return nil, errBadExpectedSize()
		}

		actual, err := c.sink.Size(ctx, upload.StorageRef)
		if err != nil {
			return nil, storageError(err, "Unable to read the size of the upload")
		}

		if actual != expected {
			return nil, errExpectedSizeMismatch(actual)
		}

		sizeChecked = true
	}

	err = c.uploads.MarkChunkedUploadComplete(upload, c.now())
	switch {
	case errors.Is(err, stor.ErrAlreadyComplete):
		return nil, errAlreadyComplete()
	case errors.Is(err, stor.ErrNotFound):
		return nil, errNotFound()
	case err != nil:
		return nil, recordStoreError(err, "Unable to save upload")
	}

	clog.ForUpload(upload.UploadID).Infof("Upload of %s complete, %d bytes", upload.Filename, upload.Offset)
	c.hooks.OnCompleted(ctx, upload)

	return &CompletionResult{SizeChecked: sizeChecked}, nil
}
