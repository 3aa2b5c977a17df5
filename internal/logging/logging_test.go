package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	if got := parseLevel("DEBUG"); got != zerolog.DebugLevel {
		t.Errorf("parseLevel(DEBUG) = %s, want debug", got)
	}
	if got := parseLevel("bogus"); got != zerolog.InfoLevel {
		t.Errorf("parseLevel(bogus) = %s, want info", got)
	}
	if got := parseLevel(""); got != zerolog.InfoLevel {
		t.Errorf("parseLevel(empty) = %s, want info", got)
	}
}

func TestNewLoggerAppliesLevel(t *testing.T) {
	logger := NewLogger(Config{Level: "warn"})
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("logger level = %s, want warn", logger.GetLevel())
	}
}
