package clog

import (
	"io"

	"github.com/apex/log"
)

// Setup installs a Handler writing to w as the apex/log global handler and
// sets the global level from a level name ("debug", "info", ...).
func Setup(w io.Writer, level string) (*Handler, error) {
	lvl := log.InfoLevel
	if level != "" {
		var err error
		if lvl, err = log.ParseLevel(level); err != nil {
			return nil, err
		}
	}

	h := NewHandler(w)
	log.SetHandler(h)
	log.SetLevel(lvl)

	return h, nil
}

// ForUpload returns an entry that tags every line with the upload id.
func ForUpload(uploadID string) *log.Entry {
	return log.WithField("upload_id", uploadID)
}
