package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"trace": LevelTrace,
		"TRACE": LevelTrace,
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
	}

	for input, want := range tests {
		if got := ParseLogLevel(input); got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}

	if got := ParseLogLevel("unknown"); got != LevelInfo {
		t.Fatalf("ParseLogLevel default = %v, want %v", got, LevelInfo)
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelInfo, &buf)
	logger.Debugf("hidden %d", 1)
	logger.Tracef("hidden %d", 2)
	logger.Warnf("shown %s", "warn")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug and trace output to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] shown warn") {
		t.Fatalf("expected warn line, got %q", out)
	}
	if logger.Enabled(LevelDebug) {
		t.Fatalf("expected debug to be disabled at info level")
	}
	logger.SetLevel(LevelTrace)
	if !logger.Enabled(LevelTrace) {
		t.Fatalf("expected trace to be enabled after SetLevel")
	}
}
