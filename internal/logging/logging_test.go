package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"lexchat/internal/config"
)

func TestSetupJSONRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := Setup(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Str("conversation", "7").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("log lines = %#v, want exactly one", lines)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("json log line: %v", err)
	}
	if entry["message"] != "visible" || entry["conversation"] != "7" || entry["level"] != "info" {
		t.Fatalf("entry = %#v", entry)
	}
}

func TestSetupConsoleFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := Setup(config.LoggingConfig{Level: "warn", Format: "console"}, &buf)
	logger.Warn().Msg("title refresh failed")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("console output looks like json: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "title refresh failed") {
		t.Fatalf("console output = %q", buf.String())
	}
}

func TestParseLevelDefaultsToWarn(t *testing.T) {
	t.Parallel()

	cases := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		" INFO ": zerolog.InfoLevel,
		"error":  zerolog.ErrorLevel,
		"warn":   zerolog.WarnLevel,
		"":       zerolog.WarnLevel,
		"trace":  zerolog.WarnLevel,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}
