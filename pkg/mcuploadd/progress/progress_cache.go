package progress

import (
	"sync"
	"time"
)

// UploadProgress is the last known offset of an upload in flight.
type UploadProgress struct {
	UploadID string    `json:"upload_id"`
	Filename string    `json:"filename"`
	Offset   int64     `json:"offset"`
	Expires  time.Time `json:"expires"`
	userID   int
}

// UploadProgressCache tracks uploads that have received chunks but haven't
// completed yet, so newly connected clients can be sent a snapshot. Entries
// past their Expires time are dropped, the reaper may already have removed
// those uploads.
type UploadProgressCache struct {
	uploadProgress map[string]UploadProgress
	mu             sync.Mutex
	now            func() time.Time
}

func NewUploadProgressCache() *UploadProgressCache {
	return &UploadProgressCache{
		uploadProgress: make(map[string]UploadProgress),
		now:            time.Now,
	}
}

func (c *UploadProgressCache) GetUploadProgress(uploadID string) (UploadProgress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneExpired()
	progress, ok := c.uploadProgress[uploadID]
	return progress, ok
}

func (c *UploadProgressCache) SetUploadProgress(userID int, progress UploadProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneExpired()
	progress.userID = userID
	c.uploadProgress[progress.UploadID] = progress
}

func (c *UploadProgressCache) DeleteUploadProgress(uploadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.uploadProgress, uploadID)
}

// ForUser returns the uploads in flight for userID.
func (c *UploadProgressCache) ForUser(userID int) []UploadProgress {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneExpired()

	var uploads []UploadProgress
	for _, progress := range c.uploadProgress {
		if progress.userID == userID {
			uploads = append(uploads, progress)
		}
	}

	return uploads
}

// Len returns the number of uploads tracked.
func (c *UploadProgressCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneExpired()
	return len(c.uploadProgress)
}

// pruneExpired must be called with mu held. A zero Expires never expires.
func (c *UploadProgressCache) pruneExpired() {
	now := c.now()
	for uploadID, progress := range c.uploadProgress {
		if !progress.Expires.IsZero() && !now.Before(progress.Expires) {
			delete(c.uploadProgress, uploadID)
		}
	}
}
