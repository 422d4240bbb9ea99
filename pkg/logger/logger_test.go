package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"loud":  zerolog.InfoLevel,
	}
	for in, want := range cases {
		New(Config{Level: in})
		if got := zerolog.GlobalLevel(); got != want {
			t.Fatalf("level %q expected %s got %s", in, want, got)
		}
	}
}

func TestNewWritesMessage(t *testing.T) {
	l := New(Config{Level: "info"})
	var buf bytes.Buffer
	l = l.Output(&buf)
	l.Info().Str("part", "scanner").Msg("pipeline ready")
	out := buf.String()
	if !strings.Contains(out, "pipeline ready") || !strings.Contains(out, "scanner") {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestLevelFilters(t *testing.T) {
	l := New(Config{Level: "error"})
	var buf bytes.Buffer
	l = l.Output(&buf)
	l.Info().Msg("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info should be filtered at error level")
	}
	l.Error().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("error should pass at error level")
	}
}
