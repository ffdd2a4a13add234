package chunked

import (
	"time"

	"github.com/apex/log"
	"github.com/materials-commons/mcupload/pkg/config"
)

// RecordScope decides which uploads a caller can see. Under ScopeUser a
// caller without an identity sees only uploads that have no owner.
type RecordScope string

const (
	// ScopeUser lets callers see only their own uploads.
	ScopeUser RecordScope = "user"

	// ScopeGlobal lets any caller continue or complete any upload.
	ScopeGlobal RecordScope = "global"
)

// Config is passed to the coordinators when they are built. A zero
// MaxUploadBytes means there is no limit.
type Config struct {
	RecordScope        RecordScope
	MaxUploadBytes     int64
	RequireRangeHeader bool
	ExpirationDelta    time.Duration
}

func DefaultConfig() Config {
	return Config{
		RecordScope:     ScopeUser,
		ExpirationDelta: config.DefaultExpiration,
	}
}

// LoadConfig reads the upload settings from c, falling back to DefaultConfig
// for anything missing or unparseable.
func LoadConfig(c config.Configer) Config {
	cfg := DefaultConfig()

	switch scope := RecordScope(c.GetKeyWithDefault(config.KeyRecordScope, config.DefaultRecordScope)); scope {
	case ScopeUser, ScopeGlobal:
		cfg.RecordScope = scope
	default:
		log.Warnf("Unknown %s '%s', using '%s'", config.KeyRecordScope, scope, ScopeUser)
	}

	cfg.MaxUploadBytes = c.GetInt64KeyWithDefault(config.KeyMaxBytes, 0)
	if cfg.MaxUploadBytes < 0 {
		cfg.MaxUploadBytes = 0
	}

	cfg.RequireRangeHeader = c.GetBoolKeyWithDefault(config.KeyRequireRange, false)
	cfg.ExpirationDelta = c.GetDurationKeyWithDefault(config.KeyExpiration, config.DefaultExpiration)

	return cfg
}
