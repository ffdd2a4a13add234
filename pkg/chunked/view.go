package chunked

import (
	"time"

	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
)

// Chunk is one slice of the file as it arrived, Name is the client's name
// for the whole file.
type Chunk struct {
	Name string
	Data []byte
}

// ChunkRequest is a request to append a chunk. An empty UploadID starts a
// new upload. ContentRange is the raw "bytes <start>-<end>/<total>" header.
type ChunkRequest struct {
	UploadID     string
	Chunk        *Chunk
	ContentRange string
	User         *mcmodel.User
}

type RecordView struct {
	UploadID  string    `json:"upload_id"`
	Offset    int64     `json:"offset"`
	ExpiresAt time.Time `json:"expires"`
}

func newRecordView(upload *mcmodel.ChunkedUpload, expirationDelta time.Duration) *RecordView {
	return &RecordView{
		UploadID:  upload.UploadID,
		Offset:    upload.Offset,
		ExpiresAt: upload.ExpiresAt(expirationDelta),
	}
}

// CompleteRequest asks for an upload to be marked complete. ExpectedSize is
// passed as received so that a malformed value can be reported.
type CompleteRequest struct {
	UploadID     string
	User         *mcmodel.User
	ExpectedSize string
}

type CompletionResult struct {
	SizeChecked bool `json:"size_checked"`
}

// UploadStatus is what a client sees when it asks where an upload stands.
type UploadStatus struct {
	UploadID    string     `json:"upload_id"`
	Filename    string     `json:"filename"`
	Offset      int64      `json:"offset"`
	Status      string     `json:"status"`
	ExpiresAt   time.Time  `json:"expires"`
	CompletedAt *time.Time `json:"completed_at"`
}
