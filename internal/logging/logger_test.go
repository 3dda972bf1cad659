package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestDefaultLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(NSDB, &buf, LevelWarn)
	l.Debugf("debug message")
	l.Infof("info message")
	l.Warnf("warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Fatalf("filtered levels leaked through: %q", out)
	}
	if !strings.Contains(out, "warn message") {
		t.Fatalf("warn message missing: %q", out)
	}
}

func TestFatalfInvokesHandler(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(NSRecovery, &buf, LevelError)
	var got string
	l.SetFatalHandler(func(msg string) { got = msg })
	l.Fatalf("disk on fire: %d", 42)
	if got != "disk on fire: 42" {
		t.Fatalf("fatal handler got %q", got)
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil) != Discard {
		t.Fatalf("OrDefault(nil) should return Discard")
	}
	l := NewLogger(NSWAL, &bytes.Buffer{}, LevelInfo)
	if OrDefault(l) != l {
		t.Fatalf("OrDefault should pass through a non-nil logger")
	}
}
