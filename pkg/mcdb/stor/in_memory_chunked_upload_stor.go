package stor

import (
	"sort"
	"sync"
	"time"

	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/pkg/errors"
)

// InMemoryChunkedUploadStor keeps uploads in a map. Every call hands back a
// copy so callers can't change stored state without going through the stor,
// the same as with the database backed stor.
type InMemoryChunkedUploadStor struct {
	ErrToReturn error
	mu          sync.Mutex
	uploads     map[string]mcmodel.ChunkedUpload
	lastID      int
}

func NewInMemoryChunkedUploadStor() *InMemoryChunkedUploadStor {
	return &InMemoryChunkedUploadStor{
		uploads: make(map[string]mcmodel.ChunkedUpload),
		lastID:  10000,
	}
}

func (s *InMemoryChunkedUploadStor) CreateChunkedUpload(upload *mcmodel.ChunkedUpload) (*mcmodel.ChunkedUpload, error) {
	if s.ErrToReturn != nil {
		return nil, s.ErrToReturn
	}

	var err error

	if upload.UploadID == "" {
		if upload.UploadID, err = NewUploadID(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.uploads[upload.UploadID]; ok {
		return nil, errors.Errorf("duplicate upload_id %s", upload.UploadID)
	}

	if upload.Status == "" {
		upload.Status = mcmodel.ChunkedUploadStatusUploading
	}

	now := time.Now()
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = now
	}
	upload.UpdatedAt = now

	s.lastID++
	upload.ID = s.lastID
	s.uploads[upload.UploadID] = *upload

	return upload, nil
}

func (s *InMemoryChunkedUploadStor) GetChunkedUploadByUploadID(uploadID string) (*mcmodel.ChunkedUpload, error) {
	if s.ErrToReturn != nil {
		return nil, s.ErrToReturn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	upload, ok := s.uploads[uploadID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "chunked upload %s", uploadID)
	}

	return &upload, nil
}

func (s *InMemoryChunkedUploadStor) UpdateChunkedUploadOffset(upload *mcmodel.ChunkedUpload, fromOffset int64) error {
	if s.ErrToReturn != nil {
		return s.ErrToReturn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.uploads[upload.UploadID]
	switch {
	case !ok:
		return errors.Wrapf(ErrNotFound, "chunked upload %s", upload.UploadID)
	case stored.IsComplete():
		return errors.Wrapf(ErrAlreadyComplete, "chunked upload %s", upload.UploadID)
	case stored.Offset != fromOffset:
		return errors.Wrapf(ErrOffsetChanged, "chunked upload %s", upload.UploadID)
	}

	stored.Offset = upload.Offset
	stored.UpdatedAt = time.Now()
	s.uploads[upload.UploadID] = stored

	return nil
}

func (s *InMemoryChunkedUploadStor) MarkChunkedUploadComplete(upload *mcmodel.ChunkedUpload, completedAt time.Time) error {
	if s.ErrToReturn != nil {
		return s.ErrToReturn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.uploads[upload.UploadID]
	switch {
	case !ok:
		return errors.Wrapf(ErrNotFound, "chunked upload %s", upload.UploadID)
	case stored.IsComplete():
		return errors.Wrapf(ErrAlreadyComplete, "chunked upload %s", upload.UploadID)
	}

	stored.Status = mcmodel.ChunkedUploadStatusComplete
	stored.CompletedAt = &completedAt
	s.uploads[upload.UploadID] = stored

	upload.Status = stored.Status
	upload.CompletedAt = &completedAt

	return nil
}

func (s *InMemoryChunkedUploadStor) ListChunkedUploadsCreatedBefore(cutoff time.Time) ([]mcmodel.ChunkedUpload, error) {
	if s.ErrToReturn != nil {
		return nil, s.ErrToReturn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var uploads []mcmodel.ChunkedUpload
	for _, upload := range s.uploads {
		if upload.CreatedAt.Before(cutoff) {
			uploads = append(uploads, upload)
		}
	}

	sort.Slice(uploads, func(i, j int) bool {
		if uploads[i].CreatedAt.Equal(uploads[j].CreatedAt) {
			return uploads[i].ID < uploads[j].ID
		}
		return uploads[i].CreatedAt.Before(uploads[j].CreatedAt)
	})

	return uploads, nil
}

func (s *InMemoryChunkedUploadStor) DeleteChunkedUpload(upload *mcmodel.ChunkedUpload) error {
	if s.ErrToReturn != nil {
		return s.ErrToReturn
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, upload.UploadID)

	return nil
}

// Count is a test helper.
func (s *InMemoryChunkedUploadStor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}
