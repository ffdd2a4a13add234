package chunked

import (
	"errors"

	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/materials-commons/mcupload/pkg/mcdb/stor"
)

// findUpload looks up uploadID as seen by user. Uploads outside the
// caller's scope are reported exactly like missing ones.
func findUpload(uploads stor.ChunkedUploadStor, scope RecordScope, uploadID string, user *mcmodel.User) (*mcmodel.ChunkedUpload, error) {
	upload, err := uploads.GetChunkedUploadByUploadID(uploadID)
	switch {
	case errors.Is(err, stor.ErrNotFound):
		return nil, errNotFound()
	case err != nil:
		return nil, recordStoreError(err, "Unable to load upload")
	}

	if scope == ScopeUser && !upload.OwnedBy(userIDOf(user)) {
		return nil, errNotFound()
	}

	return upload, nil
}

func userIDOf(user *mcmodel.User) *int {
	if user == nil {
		return nil
	}

	id := user.ID
	return &id
}
