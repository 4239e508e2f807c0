// Package logging builds the leveled key/value logger shared by the server,
// the worker and the terminal client.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	gormlogger "gorm.io/gorm/logger"
)

type Options struct {
	Level  string
	Format string
	Prefix string
}

func New(opts Options) *log.Logger {
	return NewWithWriter(os.Stderr, opts)
}

func NewWithWriter(w io.Writer, opts Options) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(opts.Level),
		Formatter:       ParseFormatter(opts.Format),
		ReportTimestamp: true,
		Prefix:          opts.Prefix,
	})
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

func ParseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func ParseFormatter(format string) log.Formatter {
	switch format {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// GormLevel maps our level names onto gorm's SQL logger levels. SQL statements
// are only traced at debug.
func GormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	case "info", "warn", "warning":
		return gormlogger.Warn
	default:
		return gormlogger.Silent
	}
}
