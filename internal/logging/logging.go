// Package logging configures the logrus logger shared by every orbit component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// LoggerConfig configures the logger.
type LoggerConfig struct {
	// Level is the minimum log level to output.
	Level string
	// Format is either "text" or "json".
	Format string
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultLoggerConfig returns the default logger configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:  "info",
		Format: FormatText,
		Output: os.Stderr,
	}
}

// ParseLevel parses a level name. Unknown names fall back to info.
func ParseLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// New creates a logger from cfg.
func New(cfg LoggerConfig) *logrus.Logger {
	log := logrus.New()
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	log.SetOutput(cfg.Output)
	log.SetLevel(ParseLevel(cfg.Level))

	switch cfg.Format {
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000",
		})
	}
	return log
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// WithComponent returns an entry tagged with the component field.
// A nil logger yields a discarding entry.
func WithComponent(log logrus.FieldLogger, component string) *logrus.Entry {
	if log == nil {
		log = Discard()
	}
	return log.WithField("component", component)
}
