package config

import (
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
)

// Keys understood by mcuploadd.
const (
	KeyDBDriver         = "MCUPLOAD_DB_DRIVER"
	KeyDBDSN            = "MCUPLOAD_DB_DSN"
	KeyPort             = "MCUPLOAD_PORT"
	KeySink             = "MCUPLOAD_SINK"
	KeyDir              = "MCUPLOAD_DIR"
	KeyUploadTo         = "MCUPLOAD_UPLOAD_TO"
	KeySFTPHost         = "MCUPLOAD_SFTP_HOST"
	KeySFTPUser         = "MCUPLOAD_SFTP_USER"
	KeySFTPPassword     = "MCUPLOAD_SFTP_PASSWORD"
	KeySFTPDir          = "MCUPLOAD_SFTP_DIR"
	KeySFTPKnownHosts   = "MCUPLOAD_SFTP_KNOWN_HOSTS"
	KeyExpiration       = "MCUPLOAD_EXPIRATION"
	KeyMaxBytes         = "MCUPLOAD_MAX_BYTES"
	KeyRequireRange     = "MCUPLOAD_REQUIRE_RANGE"
	KeyRecordScope      = "MCUPLOAD_RECORD_SCOPE"
	KeyRequireIdentity  = "MCUPLOAD_REQUIRE_IDENTITY"
	KeyLogLevel         = "MCUPLOAD_LOG_LEVEL"
	KeyDotenvPath       = "MC_DOTENV_PATH"
	DefaultPort         = "1354"
	DefaultUploadTo     = "chunked_uploads/%Y/%m/%d"
	DefaultExpiration   = 24 * time.Hour
	DefaultRecordScope  = "user"
	DefaultSinkProvider = "file"
	DefaultDir          = "/var/lib/mcupload"
)

var configer Configer = &DotenvConfig{}

func SetConfig(c Configer) {
	configer = c
}

// Setup picks the config backend and loads it. An explicit path always uses
// viper. Otherwise MC_DOTENV_PATH selects a dotenv file, then the default
// config file is tried, and finally the bare environment is used.
func Setup(path string) (Configer, error) {
	var c Configer

	switch {
	case path != "":
		c = NewViperConfig(path)
	case os.Getenv(KeyDotenvPath) != "":
		c = NewDotenvConfig(os.Getenv(KeyDotenvPath))
	case defaultConfigFileExists():
		c = NewViperConfig(DefaultConfigFile)
	default:
		c = NewDotenvConfig("")
	}

	if err := c.Load(); err != nil {
		return nil, err
	}

	SetConfig(c)
	return c, nil
}

func defaultConfigFileExists() bool {
	path, err := homedir.Expand(DefaultConfigFile)
	if err != nil {
		return false
	}

	_, err = os.Stat(path)
	return err == nil
}

// GetKey and GetIntKeyWithDefault read from the config installed by Setup,
// for code that has no Configer passed to it.
func GetKey(key string) string {
	return configer.GetKey(key)
}

func GetIntKeyWithDefault(key string, defaultValue int) int {
	return configer.GetIntKeyWithDefault(key, defaultValue)
}
