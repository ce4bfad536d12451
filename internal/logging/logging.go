// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Configure sets the level and formatter of the standard logger. An empty
// level means info and an empty format means text.
func Configure(level, format string) error {
	return configure(log.StandardLogger(), level, format)
}

// ConfigureOutput is Configure with the output redirected to w.
func ConfigureOutput(w io.Writer, level, format string) error {
	if err := Configure(level, format); err != nil {
		return err
	}
	log.SetOutput(w)
	return nil
}

func configure(logger *log.Logger, level, format string) error {
	if level == "" {
		level = log.InfoLevel.String()
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	switch strings.ToLower(format) {
	case "", FormatText:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q, want %s or %s", format, FormatText, FormatJSON)
	}

	logger.SetLevel(lvl)
	return nil
}
