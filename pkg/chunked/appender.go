package chunked

import (
	"context"
	"errors"

	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/materials-commons/mcupload/pkg/sink"
)

// Appender reconciles a chunk's declared range with the record and with the
// bytes actually in the sink, then appends it. The record's offset is the
// believed state and the sink size is the ground truth, both must agree
// with the chunk's start before anything is written.
type Appender struct {
	sink  sink.Sink
	hooks Hooks
}

func NewAppender(s sink.Sink, hooks Hooks) *Appender {
	return &Appender{sink: s, hooks: hooksOrNoop(hooks)}
}

// Append writes chunk to the upload's sink and advances upload.Offset. The
// caller persists the upload.
func (a *Appender) Append(ctx context.Context, upload *mcmodel.ChunkedUpload, chunk *Chunk, r ByteRange) error {
	if upload.Offset != r.Start {
		return errOffsetMismatch(upload.Offset)
	}

	if int64(len(chunk.Data)) != r.ChunkSize() {
		return errChunkSizeMismatch()
	}

	if err := a.validate(ctx, upload, chunk, r); err != nil {
		return err
	}

	size, err := a.sink.Size(ctx, upload.StorageRef)
	if err != nil {
		return storageError(err, "Unable to read the size of the upload")
	}

	if size != r.Start {
		return errConflictingWrite(size)
	}

	if err := a.sink.Append(ctx, upload.StorageRef, chunk.Data); err != nil {
		return storageError(err, "Unable to write chunk")
	}

	upload.Offset += r.ChunkSize()
	return nil
}

func (a *Appender) validate(ctx context.Context, upload *mcmodel.ChunkedUpload, chunk *Chunk, r ByteRange) error {
	err := a.hooks.ValidateChunk(ctx, upload, chunk, r)
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return ValidationError(err.Error())
}
