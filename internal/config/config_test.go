package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/export"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{
		EnvConfigFile, EnvPort, EnvLogLevel, EnvLogFormat, EnvHistoryCapacity, EnvAutosave,
		EnvFFmpegPath, EnvExportDir, EnvExportFormat, EnvExportQuality, EnvExportResolution,
		EnvExportPollInterval,
	} {
		t.Setenv(name, "")
	}
	t.Setenv(EnvDataDir, dir)
	return dir
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort || cfg.LogLevel() != "info" || cfg.LogFormat() != "json" {
		t.Errorf("server defaults = %d %s %s", cfg.Port(), cfg.LogLevel(), cfg.LogFormat())
	}
	if cfg.HistoryCapacity() != 50 || !cfg.Autosave() || cfg.FFmpegPath() != "ffmpeg" {
		t.Errorf("editor defaults = %d %v %s", cfg.HistoryCapacity(), cfg.Autosave(), cfg.FFmpegPath())
	}
	if cfg.DBPath() != filepath.Join(dir, DBFilename) || cfg.Source() != "" {
		t.Errorf("DBPath = %s, Source = %q", cfg.DBPath(), cfg.Source())
	}
	def := cfg.ExportDefaults()
	if def.Format != export.FormatMP4 || def.OutputDir != filepath.Join(dir, "exports") {
		t.Errorf("export defaults = %+v", def)
	}
}

func TestLoad_FileFromDataDir(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, filepath.Join(dir, ConfigFilename), `
[server]
port = 9000
log_format = "text"

[editor]
history_capacity = 10
autosave = false

[export]
format = "EDL"
quality = "ultra"
poll_interval_seconds = 5
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port() != 9000 || cfg.LogFormat() != "text" || cfg.HistoryCapacity() != 10 || cfg.Autosave() {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.ExportDefaults().Format != export.FormatEDL || cfg.ExportDefaults().Quality != export.QualityUltra {
		t.Errorf("export defaults = %+v", cfg.ExportDefaults())
	}
	if cfg.ExportPollInterval() != 5*time.Second {
		t.Errorf("poll interval = %s", cfg.ExportPollInterval())
	}
	if cfg.Source() != filepath.Join(dir, ConfigFilename) {
		t.Errorf("Source = %q", cfg.Source())
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	writeConfig(t, path, "[server]\nport = 9000\nlog_level = \"warn\"\n")
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvPort, "9100")
	t.Setenv(EnvAutosave, "false")
	t.Setenv(EnvExportPollInterval, "250ms")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.Port() != 9100 {
		t.Errorf("Port = %d, want env value 9100", cfg.Port())
	}
	if cfg.LogLevel() != "warn" {
		t.Errorf("LogLevel = %s, want file value warn", cfg.LogLevel())
	}
	if cfg.Autosave() || cfg.ExportPollInterval() != 250*time.Millisecond {
		t.Errorf("env overrides not applied")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad port", env: map[string]string{EnvPort: "abc"}},
		{name: "port out of range", env: map[string]string{EnvPort: "70000"}},
		{name: "bad history", env: map[string]string{EnvHistoryCapacity: "0"}},
		{name: "bad autosave", env: map[string]string{EnvAutosave: "maybe"}},
		{name: "bad log format", env: map[string]string{EnvLogFormat: "xml"}},
		{name: "bad export quality", env: map[string]string{EnvExportQuality: "insane"}},
		{name: "broken toml", file: "[server\nport = 1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := isolate(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if tc.file != "" {
				writeConfig(t, filepath.Join(dir, ConfigFilename), tc.file)
			}
			if _, err := New(); err == nil {
				t.Fatalf("New() should fail")
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	if _, err := Load(filepath.Join(dir, "nope.toml")); err == nil {
		t.Fatalf("Load() should fail for a missing explicit file")
	}
}
