package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Writer:      &buf,
		Environment: "production",
		Level:       slog.LevelInfo,
	})

	log.Info("checkout accepted", "book_id", "bk-123")

	out := buf.String()
	if !strings.Contains(out, `"book_id":"bk-123"`) {
		t.Errorf("expected JSON output with book_id attr, got %q", out)
	}
	if !strings.Contains(out, `"msg":"checkout accepted"`) {
		t.Errorf("expected msg field, got %q", out)
	}
}

func TestPrettyHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Writer:      &buf,
		Format:      "pretty",
		Environment: "development",
		Level:       slog.LevelDebug,
	})

	log.Warn("book already loaned", "book_id", "bk-1")

	out := buf.String()
	if !strings.Contains(out, "WRN") {
		t.Errorf("expected WRN level marker, got %q", out)
	}
	if !strings.Contains(out, "book_id=bk-1") {
		t.Errorf("expected key=value attrs, got %q", out)
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Writer: &buf,
		Format: "pretty",
		Level:  slog.LevelWarn,
	})

	log.Info("should be suppressed")
	if buf.Len() != 0 {
		t.Errorf("info record should be dropped below warn level, got %q", buf.String())
	}

	log.Error("should appear")
	if buf.Len() == 0 {
		t.Error("error record should be written")
	}
}

func TestWithErrorAttachesAttr(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Writer: &buf,
		Format: "pretty",
		Level:  slog.LevelInfo,
	})

	log.WithError(errTest{}).Info("return failed")

	if !strings.Contains(buf.String(), "error=boom") {
		t.Errorf("expected error attr, got %q", buf.String())
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
