package config

import (
	"strconv"
	"strings"
	"time"
)

type Configer interface {
	LoadFromPath(path string) error
	Load() error
	GetKey(key string) string
	MustGetKey(key string) string
	GetKeyWithDefault(key, defaultValue string) string
	GetIntKey(key string) int
	MustGetIntKey(key string) int
	GetIntKeyWithDefault(key string, defaultValue int) int
	GetInt64KeyWithDefault(key string, defaultValue int64) int64
	GetBoolKeyWithDefault(key string, defaultValue bool) bool
	GetDurationKeyWithDefault(key string, defaultValue time.Duration) time.Duration
}

// keyGetter is the one method every backend has to supply. The typed
// lookups below are shared on top of it.
type keyGetter interface {
	GetKey(key string) string
}

func int64KeyWithDefault(g keyGetter, key string, defaultValue int64) int64 {
	val, err := strconv.ParseInt(strings.TrimSpace(g.GetKey(key)), 10, 64)
	if err != nil {
		return defaultValue
	}

	return val
}

func boolKeyWithDefault(g keyGetter, key string, defaultValue bool) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(g.GetKey(key)))
	if err != nil {
		return defaultValue
	}

	return val
}

// durationKeyWithDefault accepts Go durations ("36h", "90m") and bare integers,
// which are read as seconds.
func durationKeyWithDefault(g keyGetter, key string, defaultValue time.Duration) time.Duration {
	val := strings.TrimSpace(g.GetKey(key))
	if val == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(val); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(val, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultValue
}
