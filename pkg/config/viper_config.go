package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// DefaultConfigFile is used when no --config flag is given and
// MC_DOTENV_PATH isn't set.
const DefaultConfigFile = "~/.mcuploadd.yaml"

// ViperConfig reads keys from a yaml/json/toml config file. Environment
// variables with the same name as a key take precedence over the file.
type ViperConfig struct {
	ConfigPath string
	v          *viper.Viper
}

func NewViperConfig(path string) *ViperConfig {
	v := viper.New()
	v.AutomaticEnv()
	return &ViperConfig{ConfigPath: path, v: v}
}

func (c *ViperConfig) LoadFromPath(path string) error {
	c.ConfigPath = path
	return c.Load()
}

func (c *ViperConfig) Load() error {
	if c.ConfigPath == "" {
		return fmt.Errorf("no config file path set")
	}

	path, err := homedir.Expand(c.ConfigPath)
	if err != nil {
		return err
	}

	c.v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
		c.v.SetConfigType("yaml")
	}

	return c.v.ReadInConfig()
}

// GetKey is case insensitive, viper folds all keys to lower case.
func (c *ViperConfig) GetKey(key string) string {
	return cast.ToString(c.v.Get(key))
}

func (c *ViperConfig) MustGetKey(key string) string {
	val := c.GetKey(key)
	if val == "" {
		log.Fatalf("No such required config key: '%s'", key)
	}

	return val
}

func (c *ViperConfig) GetKeyWithDefault(key, defaultValue string) string {
	val := c.GetKey(key)
	if val == "" {
		return defaultValue
	}

	return val
}

func (c *ViperConfig) GetIntKey(key string) int {
	return int(int64KeyWithDefault(c, key, 0))
}

func (c *ViperConfig) MustGetIntKey(key string) int {
	val, err := cast.ToIntE(c.GetKey(key))
	if err != nil {
		log.Fatalf("Required config key either doesn't exist or isn't an int: '%s': %s", key, err)
	}

	return val
}

func (c *ViperConfig) GetIntKeyWithDefault(key string, defaultValue int) int {
	return int(int64KeyWithDefault(c, key, int64(defaultValue)))
}

func (c *ViperConfig) GetInt64KeyWithDefault(key string, defaultValue int64) int64 {
	return int64KeyWithDefault(c, key, defaultValue)
}

func (c *ViperConfig) GetBoolKeyWithDefault(key string, defaultValue bool) bool {
	return boolKeyWithDefault(c, key, defaultValue)
}

func (c *ViperConfig) GetDurationKeyWithDefault(key string, defaultValue time.Duration) time.Duration {
	return durationKeyWithDefault(c, key, defaultValue)
}
