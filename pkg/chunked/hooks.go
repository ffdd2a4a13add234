package chunked

import (
	"context"

	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
)

// Hooks are the extension points the coordinators call. ValidateChunk runs
// before anything is written and can reject the chunk, an *Error it returns
// is passed back as is and any other error becomes a VALIDATION_FAILED error.
// The On* hooks run after the record has been persisted, or for OnDeleted
// removed by the Reaper, and cannot fail the request.
type Hooks interface {
	ValidateChunk(ctx context.Context, upload *mcmodel.ChunkedUpload, chunk *Chunk, r ByteRange) error
	OnChunkPersisted(ctx context.Context, upload *mcmodel.ChunkedUpload)
	OnCompleted(ctx context.Context, upload *mcmodel.ChunkedUpload)
	OnDeleted(ctx context.Context, upload *mcmodel.ChunkedUpload)
}

type NoopHooks struct{}

func (NoopHooks) ValidateChunk(_ context.Context, _ *mcmodel.ChunkedUpload, _ *Chunk, _ ByteRange) error {
	return nil
}

func (NoopHooks) OnChunkPersisted(_ context.Context, _ *mcmodel.ChunkedUpload) {}

func (NoopHooks) OnCompleted(_ context.Context, _ *mcmodel.ChunkedUpload) {}

func (NoopHooks) OnDeleted(_ context.Context, _ *mcmodel.ChunkedUpload) {}

// HookChain calls each hook in order. Validation stops at the first
// rejection.
type HookChain []Hooks

func (h HookChain) ValidateChunk(ctx context.Context, upload *mcmodel.ChunkedUpload, chunk *Chunk, r ByteRange) error {
	for _, hook := range h {
		if err := hook.ValidateChunk(ctx, upload, chunk, r); err != nil {
			return err
		}
	}

	return nil
}

func (h HookChain) OnChunkPersisted(ctx context.Context, upload *mcmodel.ChunkedUpload) {
	for _, hook := range h {
		hook.OnChunkPersisted(ctx, upload)
	}
}

func (h HookChain) OnCompleted(ctx context.Context, upload *mcmodel.ChunkedUpload) {
	for _, hook := range h {
		hook.OnCompleted(ctx, upload)
	}
}

func (h HookChain) OnDeleted(ctx context.Context, upload *mcmodel.ChunkedUpload) {
	for _, hook := range h {
		hook.OnDeleted(ctx, upload)
	}
}

func hooksOrNoop(hooks Hooks) Hooks {
	if hooks == nil {
		return NoopHooks{}
	}

	return hooks
}
