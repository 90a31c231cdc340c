package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := WithJobID(WithProjectID(New(&buf, "info", "json"), "p1"), "j1")
	logger.Debug("hidden")
	logger.Info("export queued")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not a single JSON line: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "export queued" || entry["project_id"] != "p1" || entry["job_id"] != "j1" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	WithComponent(New(&buf, "debug", "text"), "api").Debug("hello")
	if out := buf.String(); !strings.Contains(out, "component=api") || !strings.Contains(out, "msg=hello") {
		t.Fatalf("text output = %q", out)
	}
}
