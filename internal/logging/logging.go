// Package logging builds the diagnostic logger.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lexchat/internal/config"
)

// Setup returns a logger writing to w with the configured level and format.
// Unknown levels fall back to warn.
func Setup(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	var out io.Writer = w
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
}

func parseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}
