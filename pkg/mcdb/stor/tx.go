package stor

import (
	"errors"

	"github.com/materials-commons/mcupload/pkg/mcdb/config"
	"gorm.io/gorm"
)

// WithTxRetry runs fn in a transaction, retrying up to MC_TX_RETRY times
// (minimum 3). Errors that retrying can't fix are returned right away.
func WithTxRetry(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error

	retryCount := config.GetTxRetry()

	if retryCount < 3 {
		retryCount = 3
	}

	for i := 0; i < retryCount; i++ {
		err = db.Transaction(fn)
		if err == nil || isNotFound(err) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyComplete) || errors.Is(err, ErrOffsetChanged) {
			break
		}
	}

	return err
}
