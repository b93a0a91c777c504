// Package config provides configuration management for Frameloom Studio.
// Configuration is loaded from an optional YAML file and environment
// variables, with environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort     = 8799
	DefaultLogLevel = "info"
	DefaultDataDir  = ".frameloom"
	DefaultFPS      = 5
	DefaultPollSecs = 2

	// Environment variable names
	EnvPort         = "FRAMELOOM_PORT"
	EnvLogLevel     = "FRAMELOOM_LOG_LEVEL"
	EnvDataDir      = "FRAMELOOM_DATA_DIR"
	EnvConfigFile   = "FRAMELOOM_CONFIG"
	EnvFFmpegPath   = "FRAMELOOM_FFMPEG"
	EnvFFprobePath  = "FRAMELOOM_FFPROBE"
	EnvPollInterval = "FRAMELOOM_JOB_POLL_SECONDS"
	EnvLicenseURL   = "FRAMELOOM_LICENSE_URL"
	EnvHeadless     = "FRAMELOOM_HEADLESS"
	EnvDefaultFPS   = "FRAMELOOM_DEFAULT_FPS"

	// Database filename
	DBFilename = "frameloom.db"

	// Config filename looked up inside the data directory when
	// FRAMELOOM_CONFIG is not set.
	ConfigFilename = "config.yaml"

	// FPS bounds shared with the project layer
	MinFPS = 1
	MaxFPS = 60
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	MoviesDir() string
	FFmpegPath() string
	FFprobePath() string
	JobPollInterval() time.Duration
	LicenseURL() string
	Headless() bool
	DefaultFPS() int
}

// EnvConfig reads configuration from a YAML file plus environment overrides
type EnvConfig struct {
	port       int
	logLevel   string
	dataDir    string
	ffmpeg     string
	ffprobe    string
	pollSecs   int
	licenseURL string
	headless   bool
	defaultFPS int
}

// fileConfig mirrors the optional YAML config file
type fileConfig struct {
	Port           int    `yaml:"port"`
	LogLevel       string `yaml:"log_level"`
	DataDir        string `yaml:"data_dir"`
	FFmpeg         string `yaml:"ffmpeg"`
	FFprobe        string `yaml:"ffprobe"`
	JobPollSeconds int    `yaml:"job_poll_seconds"`
	LicenseURL     string `yaml:"license_url"`
	DefaultFPS     int    `yaml:"default_fps"`
}

// New creates a new EnvConfig with defaults, YAML file values, and
// environment variable overrides applied in that order.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:       DefaultPort,
		logLevel:   DefaultLogLevel,
		dataDir:    defaultDataDir(),
		ffmpeg:     "ffmpeg",
		ffprobe:    "ffprobe",
		pollSecs:   DefaultPollSecs,
		defaultFPS: DefaultFPS,
	}

	// The data dir decides where the implicit config file lives, so it is
	// resolved from the environment before the file is read.
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if err := cfg.loadFile(); err != nil {
		return nil, err
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", cfg.port)
	}
	if cfg.defaultFPS < MinFPS || cfg.defaultFPS > MaxFPS {
		return nil, fmt.Errorf("invalid default fps %d: must be between %d and %d", cfg.defaultFPS, MinFPS, MaxFPS)
	}
	if cfg.pollSecs < 1 {
		return nil, fmt.Errorf("invalid job poll interval %d: must be at least 1 second", cfg.pollSecs)
	}

	return cfg, nil
}

func (c *EnvConfig) loadFile() error {
	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		path = filepath.Join(c.dataDir, ConfigFilename)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if !explicit {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" && os.Getenv(EnvDataDir) == "" {
		c.dataDir = fc.DataDir
	}
	if fc.FFmpeg != "" {
		c.ffmpeg = fc.FFmpeg
	}
	if fc.FFprobe != "" {
		c.ffprobe = fc.FFprobe
	}
	if fc.JobPollSeconds != 0 {
		c.pollSecs = fc.JobPollSeconds
	}
	if fc.LicenseURL != "" {
		c.licenseURL = fc.LicenseURL
	}
	if fc.DefaultFPS != 0 {
		c.defaultFPS = fc.DefaultFPS
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

	if fp := os.Getenv(EnvFFmpegPath); fp != "" {
		c.ffmpeg = fp
	}
	if fp := os.Getenv(EnvFFprobePath); fp != "" {
		c.ffprobe = fp
	}

	if pi := os.Getenv(EnvPollInterval); pi != "" {
		secs, err := strconv.Atoi(pi)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPollInterval, err)
		}
		c.pollSecs = secs
	}

	if lu := os.Getenv(EnvLicenseURL); lu != "" {
		c.licenseURL = lu
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = headless
	}

	if f := os.Getenv(EnvDefaultFPS); f != "" {
		fps, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDefaultFPS, err)
		}
		c.defaultFPS = fps
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

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// MoviesDir returns the directory exported videos are published under.
// The layout <MoviesDir>/<projectID>/export.mp4 is a stable path contract.
func (c *EnvConfig) MoviesDir() string {
	return filepath.Join(c.dataDir, "Movies")
}

// FFmpegPath returns the ffmpeg binary path or name
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpeg
}

// FFprobePath returns the ffprobe binary path or name
func (c *EnvConfig) FFprobePath() string {
	return c.ffprobe
}

// JobPollInterval returns how often the job runner polls for pending work
func (c *EnvConfig) JobPollInterval() time.Duration {
	return time.Duration(c.pollSecs) * time.Second
}

// LicenseURL returns the license service base URL; empty means offline mode
func (c *EnvConfig) LicenseURL() string {
	return c.licenseURL
}

// Headless reports whether the tray UI should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// DefaultFPS returns the fps assigned to newly created projects
func (c *EnvConfig) DefaultFPS() int {
	return c.defaultFPS
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
