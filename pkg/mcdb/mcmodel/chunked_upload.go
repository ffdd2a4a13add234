package mcmodel

import (
	"fmt"
	"time"
)

const (
	ChunkedUploadStatusUploading = "uploading"
	ChunkedUploadStatusComplete  = "complete"
)

// ChunkedUpload tracks one resumable upload. UploadID is the only handle
// ever given to clients; ID stays internal.
type ChunkedUpload struct {
	ID          int        `json:"-"`
	UploadID    string     `json:"upload_id" gorm:"size:36;uniqueIndex;not null"`
	Filename    string     `json:"filename" gorm:"size:255;not null"`
	StorageRef  string     `json:"-" gorm:"size:1024;not null"`
	Offset      int64      `json:"offset" gorm:"not null;default:0"`
	Status      string     `json:"status" gorm:"size:16;not null;index"`
	OwnerID     *int       `json:"owner_id" gorm:"index"`
	Owner       *User      `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
	CompletedAt *time.Time `json:"completed_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (ChunkedUpload) TableName() string {
	return "chunked_uploads"
}

func (u *ChunkedUpload) IsComplete() bool {
	return u.Status == ChunkedUploadStatusComplete
}

func (u *ChunkedUpload) ExpiresAt(expirationDelta time.Duration) time.Time {
	return u.CreatedAt.Add(expirationDelta)
}

// IsExpired is true once now reaches the expiration time.
func (u *ChunkedUpload) IsExpired(now time.Time, expirationDelta time.Duration) bool {
	return !now.Before(u.ExpiresAt(expirationDelta))
}

// OwnedBy reports whether the upload belongs to userID. A nil userID matches
// uploads without an owner.
func (u *ChunkedUpload) OwnedBy(userID *int) bool {
	switch {
	case u.OwnerID == nil && userID == nil:
		return true
	case u.OwnerID == nil || userID == nil:
		return false
	default:
		return *u.OwnerID == *userID
	}
}

func (u *ChunkedUpload) String() string {
	return fmt.Sprintf("<%s - upload_id: %s - bytes: %d - status: %s>", u.Filename, u.UploadID, u.Offset, u.Status)
}
