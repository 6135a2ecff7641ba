// Package logging builds the structured stderr logger shared by the scan
// pipeline.
package logging

import (
	"io"

	"github.com/charmbracelet/log"
)

// Level picks the logger level from the CLI switches.
func Level(quiet, debug bool) log.Level {
	switch {
	case debug:
		return log.DebugLevel
	case quiet:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// New returns a logger writing to w.
func New(w io.Writer, level log.Level) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "grpcscan",
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
	})
	return logger
}

// Discard returns a logger that drops everything. Used by tests and by
// components constructed without a logger.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
