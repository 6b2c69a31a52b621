// Package logger provides a wrapper around logrus for structured logging.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a new configured logger instance writing to stdout.
// format is "json" or "text"; anything else falls back to text.
func NewLogger(logLevel, format string) *logrus.Logger {
	return newLogger(os.Stdout, logLevel, format)
}

func newLogger(out io.Writer, logLevel, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logger.Warnf("Invalid log level '%s', defaulting to info", logLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// FormatFor returns the log format to use when none is configured:
// JSON in production, text elsewhere.
func FormatFor(environment, configured string) string {
	if configured != "" {
		return configured
	}
	if environment == "production" {
		return "json"
	}
	return "text"
}
