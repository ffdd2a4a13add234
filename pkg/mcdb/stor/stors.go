package stor

import (
	"time"

	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"gorm.io/gorm"
)

// ChunkedUploadStor is the record store for resumable uploads. Records are
// looked up by their external UploadID, never by the internal primary key.
//
// UpdateChunkedUploadOffset only moves an upload that is still uploading and
// still at fromOffset. Otherwise it fails with ErrAlreadyComplete,
// ErrOffsetChanged or ErrNotFound and leaves the record alone.
type ChunkedUploadStor interface {
	CreateChunkedUpload(upload *mcmodel.ChunkedUpload) (*mcmodel.ChunkedUpload, error)
	GetChunkedUploadByUploadID(uploadID string) (*mcmodel.ChunkedUpload, error)
	UpdateChunkedUploadOffset(upload *mcmodel.ChunkedUpload, fromOffset int64) error
	MarkChunkedUploadComplete(upload *mcmodel.ChunkedUpload, completedAt time.Time) error
	ListChunkedUploadsCreatedBefore(cutoff time.Time) ([]mcmodel.ChunkedUpload, error)
	DeleteChunkedUpload(upload *mcmodel.ChunkedUpload) error
}

type UserStor interface {
	CreateUser(user *mcmodel.User) (*mcmodel.User, error)
	GetUserByID(id int) (*mcmodel.User, error)
	GetUserByAPIToken(apitoken string) (*mcmodel.User, error)
}

type Stors struct {
	ChunkedUploadStor ChunkedUploadStor
	UserStor          UserStor
}

func NewGormStors(db *gorm.DB) *Stors {
	return &Stors{
		ChunkedUploadStor: NewGormChunkedUploadStor(db),
		UserStor:          NewGormUserStor(db),
	}
}

func NewInMemoryStors() *Stors {
	return &Stors{
		ChunkedUploadStor: NewInMemoryChunkedUploadStor(),
		UserStor:          NewInMemoryUserStor(nil),
	}
}
