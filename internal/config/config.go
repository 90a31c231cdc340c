// Package config provides configuration management for the timeline server.
// Values come from built-in defaults, an optional TOML file and environment
// variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/heimdex/heimdex-timeline/internal/export"
)

const (
	// Default values
	DefaultPort               = 8790
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultDataDir            = ".heimdex-timeline"
	DefaultHistoryCapacity    = 50
	DefaultFFmpegPath         = "ffmpeg"
	DefaultExportPollInterval = 2 * time.Second

	// Environment variable names
	EnvConfigFile         = "HEIMDEX_CONFIG"
	EnvPort               = "HEIMDEX_PORT"
	EnvLogLevel           = "HEIMDEX_LOG_LEVEL"
	EnvLogFormat          = "HEIMDEX_LOG_FORMAT"
	EnvDataDir            = "HEIMDEX_DATA_DIR"
	EnvHistoryCapacity    = "HEIMDEX_HISTORY_CAPACITY"
	EnvAutosave           = "HEIMDEX_AUTOSAVE"
	EnvFFmpegPath         = "HEIMDEX_FFMPEG_PATH"
	EnvExportDir          = "HEIMDEX_EXPORT_DIR"
	EnvExportFormat       = "HEIMDEX_EXPORT_FORMAT"
	EnvExportQuality      = "HEIMDEX_EXPORT_QUALITY"
	EnvExportResolution   = "HEIMDEX_EXPORT_RESOLUTION"
	EnvExportPollInterval = "HEIMDEX_EXPORT_POLL_INTERVAL"

	// File names inside the data directory
	DBFilename     = "timeline.db"
	LockFilename   = "timeline.lock"
	ConfigFilename = "config.toml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	LockPath() string
	FramesDir() string
	HistoryCapacity() int
	Autosave() bool
	FFmpegPath() string
	ExportDefaults() export.Settings
	ExportPollInterval() time.Duration
	Source() string
}

// fileConfig mirrors the TOML layout. Zero values leave the default in place.
type fileConfig struct {
	Server struct {
		Port      int    `toml:"port"`
		LogLevel  string `toml:"log_level"`
		LogFormat string `toml:"log_format"`
		DataDir   string `toml:"data_dir"`
	} `toml:"server"`
	Editor struct {
		HistoryCapacity int   `toml:"history_capacity"`
		Autosave        *bool `toml:"autosave"`
	} `toml:"editor"`
	Export struct {
		Dir                 string `toml:"dir"`
		Format              string `toml:"format"`
		Quality             string `toml:"quality"`
		Resolution          string `toml:"resolution"`
		FrameRate           int    `toml:"frame_rate"`
		FFmpegPath          string `toml:"ffmpeg_path"`
		PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	} `toml:"export"`
}

// EnvConfig holds the resolved configuration.
type EnvConfig struct {
	port            int
	logLevel        string
	logFormat       string
	dataDir         string
	historyCapacity int
	autosave        bool
	ffmpegPath      string
	exportDefaults  export.Settings
	pollInterval    time.Duration
	source          string
}

// New loads configuration using the file named by HEIMDEX_CONFIG, if any.
func New() (*EnvConfig, error) {
	return Load(os.Getenv(EnvConfigFile))
}

// Load resolves configuration from defaults, the TOML file at path and the
// environment. An empty path means <data dir>/config.toml when that exists.
func Load(path string) (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:            DefaultPort,
		logLevel:        DefaultLogLevel,
		logFormat:       DefaultLogFormat,
		dataDir:         defaultDataDir(),
		historyCapacity: DefaultHistoryCapacity,
		autosave:        true,
		ffmpegPath:      DefaultFFmpegPath,
		exportDefaults:  export.DefaultSettings(),
		pollInterval:    DefaultExportPollInterval,
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.dataDir, ConfigFilename)
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if cfg.exportDefaults.OutputDir == "" {
		cfg.exportDefaults.OutputDir = filepath.Join(cfg.dataDir, "exports")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) loadFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.source = path

	if fc.Server.Port != 0 {
		c.port = fc.Server.Port
	}
	if fc.Server.LogLevel != "" {
		c.logLevel = fc.Server.LogLevel
	}
	if fc.Server.LogFormat != "" {
		c.logFormat = fc.Server.LogFormat
	}
	if fc.Server.DataDir != "" && os.Getenv(EnvDataDir) == "" {
		c.dataDir = fc.Server.DataDir
	}
	if fc.Editor.HistoryCapacity != 0 {
		c.historyCapacity = fc.Editor.HistoryCapacity
	}
	if fc.Editor.Autosave != nil {
		c.autosave = *fc.Editor.Autosave
	}
	if fc.Export.Dir != "" {
		c.exportDefaults.OutputDir = fc.Export.Dir
	}
	if fc.Export.Format != "" {
		c.exportDefaults.Format = export.Format(strings.ToLower(fc.Export.Format))
	}
	if fc.Export.Quality != "" {
		c.exportDefaults.Quality = export.Quality(strings.ToLower(fc.Export.Quality))
	}
	if fc.Export.Resolution != "" {
		c.exportDefaults.Resolution = fc.Export.Resolution
	}
	if fc.Export.FrameRate != 0 {
		c.exportDefaults.FrameRate = fc.Export.FrameRate
	}
	if fc.Export.FFmpegPath != "" {
		c.ffmpegPath = fc.Export.FFmpegPath
	}
	if fc.Export.PollIntervalSeconds != 0 {
		c.pollInterval = time.Duration(fc.Export.PollIntervalSeconds) * time.Second
	}
	return nil
}

func (c *EnvConfig) loadEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if lf := os.Getenv(EnvLogFormat); lf != "" {
		c.logFormat = lf
	}
	if hc := os.Getenv(EnvHistoryCapacity); hc != "" {
		n, err := strconv.Atoi(hc)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHistoryCapacity, err)
		}
		c.historyCapacity = n
	}
	if as := os.Getenv(EnvAutosave); as != "" {
		b, err := strconv.ParseBool(as)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAutosave, err)
		}
		c.autosave = b
	}
	if fp := os.Getenv(EnvFFmpegPath); fp != "" {
		c.ffmpegPath = fp
	}
	if dir := os.Getenv(EnvExportDir); dir != "" {
		c.exportDefaults.OutputDir = dir
	}
	if f := os.Getenv(EnvExportFormat); f != "" {
		c.exportDefaults.Format = export.Format(strings.ToLower(f))
	}
	if q := os.Getenv(EnvExportQuality); q != "" {
		c.exportDefaults.Quality = export.Quality(strings.ToLower(q))
	}
	if r := os.Getenv(EnvExportResolution); r != "" {
		c.exportDefaults.Resolution = r
	}
	if pi := os.Getenv(EnvExportPollInterval); pi != "" {
		d, err := time.ParseDuration(pi)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvExportPollInterval, err)
		}
		c.pollInterval = d
	}
	return nil
}

func (c *EnvConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.port)
	}
	if c.historyCapacity < 1 {
		return fmt.Errorf("invalid history capacity %d: must be positive", c.historyCapacity)
	}
	if c.pollInterval <= 0 {
		return fmt.Errorf("invalid export poll interval %s", c.pollInterval)
	}
	switch strings.ToLower(c.logFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q: want json or text", c.logFormat)
	}
	if err := c.exportDefaults.Validate(); err != nil {
		return fmt.Errorf("export defaults: %w", err)
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

func (c *EnvConfig) LogFormat() string {
	return c.logFormat
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// LockPath is the file held while a server owns the data directory.
func (c *EnvConfig) LockPath() string {
	return filepath.Join(c.dataDir, LockFilename)
}

// FramesDir holds preview stills.
func (c *EnvConfig) FramesDir() string {
	return filepath.Join(c.dataDir, "frames")
}

func (c *EnvConfig) HistoryCapacity() int {
	return c.historyCapacity
}

func (c *EnvConfig) Autosave() bool {
	return c.autosave
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) ExportDefaults() export.Settings {
	return c.exportDefaults
}

func (c *EnvConfig) ExportPollInterval() time.Duration {
	return c.pollInterval
}

// Source is the config file that was read, or "" when none was.
func (c *EnvConfig) Source() string {
	return c.source
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
