// Package logger provides structured logging for Mongo Profiler using Logrus.
package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// init creates a default logger so packages can log before Initialize runs.
func init() {
	log = logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	log.SetOutput(os.Stderr)
}

// Initialize configures the global logger.
// Parameters:
//   - level: log level (debug, info, warn, error, fatal)
//   - format: output format (json, text)
//   - output: output destination (stdout, stderr)
func Initialize(level, format, output string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)

	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return fmt.Errorf("invalid log format %q: must be json or text", format)
	}

	switch output {
	case "stdout":
		log.SetOutput(os.Stdout)
	case "stderr":
		log.SetOutput(os.Stderr)
	default:
		return fmt.Errorf("invalid log output %q: must be stdout or stderr", output)
	}

	return nil
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	return log
}

// WithFields returns a logger entry with structured fields.
// Use this to add context to log messages:
//
//	logger.WithFields(logrus.Fields{
//	    "component": "session",
//	    "db": "test",
//	}).Info("Profiling enabled")
func WithFields(fields logrus.Fields) *logrus.Entry {
	return log.WithFields(fields)
}

// WithError returns a logger entry with an error field.
func WithError(err error) *logrus.Entry {
	return log.WithError(err)
}

// Debugf logs a formatted message at level Debug.
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Infof logs a formatted message at level Info.
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warnf logs a formatted message at level Warn.
func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Errorf logs a formatted message at level Error.
func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}
