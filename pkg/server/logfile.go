package server

import (
	"io"

	"github.com/natefinch/lumberjack"
)

// LogFileOptions configures the rotating stderr log.
type LogFileOptions struct {
	Filename   string
	MaxSizeMB  int // Size in megabytes before rotation
	MaxBackups int // Rotated files to keep, 0 keeps all
	MaxAgeDays int // Days to keep rotated files, 0 keeps all
	Compress   bool
}

// NewStderrLog returns a size-rotated file suitable for Options.StderrLog.
// The file is opened on first write.
func NewStderrLog(opts LogFileOptions) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   opts.Filename,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
}
