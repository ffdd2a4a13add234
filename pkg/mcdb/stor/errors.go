package stor

import (
	"errors"
	"strings"

	"github.com/hashicorp/go-uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyComplete = errors.New("upload already complete")
	ErrOffsetChanged   = errors.New("upload offset changed")
)

// NewUploadID returns a fresh 32 character hex token for use as an
// UploadID.
func NewUploadID() (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(id, "-", ""), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
