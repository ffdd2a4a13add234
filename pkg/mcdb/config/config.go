package config

import (
	"sync"

	mcconfig "github.com/materials-commons/mcupload/pkg/config"
)

const KeyTxRetry = "MC_TX_RETRY"

var (
	txRetry     int
	txRetryOnce sync.Once
)

// GetTxRetry returns how many times a transaction is attempted. It is read
// once from MC_TX_RETRY and never goes below 3.
func GetTxRetry() int {
	txRetryOnce.Do(func() {
		txRetry = mcconfig.GetIntKeyWithDefault(KeyTxRetry, 3)
		if txRetry < 3 {
			txRetry = 3
		}
	})

	return txRetry
}
