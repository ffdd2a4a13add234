package stor

import (
	"time"

	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type GormChunkedUploadStor struct {
	db *gorm.DB
}

func NewGormChunkedUploadStor(db *gorm.DB) *GormChunkedUploadStor {
	return &GormChunkedUploadStor{db: db}
}

// CreateChunkedUpload inserts the upload. An UploadID is generated when the
// caller didn't already assign one.
func (s *GormChunkedUploadStor) CreateChunkedUpload(upload *mcmodel.ChunkedUpload) (*mcmodel.ChunkedUpload, error) {
	var err error

	if upload.UploadID == "" {
		if upload.UploadID, err = NewUploadID(); err != nil {
			return nil, err
		}
	}

	if upload.Status == "" {
		upload.Status = mcmodel.ChunkedUploadStatusUploading
	}

	err = WithTxRetry(s.db, func(tx *gorm.DB) error {
		return tx.Create(upload).Error
	})

	if err != nil {
		return nil, errors.Wrapf(err, "creating chunked upload %s", upload.UploadID)
	}

	return upload, nil
}

func (s *GormChunkedUploadStor) GetChunkedUploadByUploadID(uploadID string) (*mcmodel.ChunkedUpload, error) {
	var upload mcmodel.ChunkedUpload
	err := s.db.Where("upload_id = ?", uploadID).First(&upload).Error
	switch {
	case isNotFound(err):
		return nil, errors.Wrapf(ErrNotFound, "chunked upload %s", uploadID)
	case err != nil:
		return nil, errors.Wrapf(err, "loading chunked upload %s", uploadID)
	default:
		return &upload, nil
	}
}

func (s *GormChunkedUploadStor) UpdateChunkedUploadOffset(upload *mcmodel.ChunkedUpload, fromOffset int64) error {
	err := WithTxRetry(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&mcmodel.ChunkedUpload{}).
			Where("id = ?", upload.ID).
			Where(map[string]interface{}{"status": mcmodel.ChunkedUploadStatusUploading, "offset": fromOffset}).
			Update("offset", upload.Offset)

		switch {
		case result.Error != nil:
			return result.Error
		case result.RowsAffected != 0:
			return nil
		}

		var current mcmodel.ChunkedUpload
		err := tx.Where("id = ?", upload.ID).First(&current).Error
		switch {
		case isNotFound(err):
			return ErrNotFound
		case err != nil:
			return err
		case current.IsComplete():
			return ErrAlreadyComplete
		default:
			return ErrOffsetChanged
		}
	})

	return errors.Wrapf(err, "updating offset of chunked upload %s", upload.UploadID)
}

// MarkChunkedUploadComplete only flips uploads that are still uploading, so a
// concurrent completion can't set completed_at twice.
func (s *GormChunkedUploadStor) MarkChunkedUploadComplete(upload *mcmodel.ChunkedUpload, completedAt time.Time) error {
	err := WithTxRetry(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&mcmodel.ChunkedUpload{}).
			Where("id = ? and status = ?", upload.ID, mcmodel.ChunkedUploadStatusUploading).
			Updates(map[string]interface{}{
				"status":       mcmodel.ChunkedUploadStatusComplete,
				"completed_at": completedAt,
			})

		switch {
		case result.Error != nil:
			return result.Error
		case result.RowsAffected == 0:
			return ErrAlreadyComplete
		default:
			return nil
		}
	})

	if err != nil {
		return errors.Wrapf(err, "completing chunked upload %s", upload.UploadID)
	}

	upload.Status = mcmodel.ChunkedUploadStatusComplete
	upload.CompletedAt = &completedAt

	return nil
}

func (s *GormChunkedUploadStor) ListChunkedUploadsCreatedBefore(cutoff time.Time) ([]mcmodel.ChunkedUpload, error) {
	var uploads []mcmodel.ChunkedUpload
	err := s.db.Where("created_at < ?", cutoff).Order("created_at, id").Find(&uploads).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing expired chunked uploads")
	}

	return uploads, nil
}

func (s *GormChunkedUploadStor) DeleteChunkedUpload(upload *mcmodel.ChunkedUpload) error {
	err := WithTxRetry(s.db, func(tx *gorm.DB) error {
		return tx.Delete(&mcmodel.ChunkedUpload{}, upload.ID).Error
	})

	return errors.Wrapf(err, "deleting chunked upload %s", upload.UploadID)
}
