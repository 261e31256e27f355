package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		level Level
		ok    bool
	}{
		{"debug", Debug, true},
		{"INFO", Info, true},
		{"Warn", Warn, true},
		{"error", Error, true},
		{"verbose", Error, false},
		{"", Error, false},
	}

	for _, c := range cases {
		level, ok := ParseLevel(c.input)
		if level != c.level || ok != c.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v); want (%v, %v)", c.input, level, ok, c.level, c.ok)
		}
	}
}

func TestLevelEnables(t *testing.T) {
	if !Debug.Enables(Error) {
		t.Error("Debug should enable Error")
	}
	if Info.Enables(Debug) {
		t.Error("Info should not enable Debug")
	}
	if !Warn.Enables(Warn) {
		t.Error("Warn should enable itself")
	}
}

func TestWriterLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(Warn, &buf)

	logger.Debug("dropped: %d", 1)
	logger.Info("dropped: %d", 2)
	logger.Warn("kept: name=%s", "ads.example.com")
	logger.Error("kept: %d", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "WARN\tkept: name=ads.example.com") {
		t.Errorf("unexpected warn line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "ERROR\tkept: 4") {
		t.Errorf("unexpected error line: %q", lines[1])
	}
	if logger.Level() != Warn {
		t.Errorf("Level() = %v; want WARN", logger.Level())
	}
}
