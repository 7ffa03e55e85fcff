package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/veranemoloko/app-installer/internal/platform"
)

// Load reads an optional .env file and the environment, fills in directory
// defaults, validates the result and ensures the data directories exist.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	cfg.applyDirDefaults(home, os.Getenv("LOCALAPPDATA"))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := createDirs(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDirDefaults(home, localAppData string) {
	setDefault(&c.DataDir, filepath.Join(home, ".stars"))
	setDefault(&c.DownloadDir, filepath.Join(c.DataDir, "downloads"))
	setDefault(&c.LibraryFile, filepath.Join(c.DataDir, "library-v0.json"))
	setDefault(&c.RunsDir, filepath.Join(c.DataDir, "runs"))

	if localAppData == "" {
		localAppData = filepath.Join(home, "AppData", "Local")
	}
	setDefault(&c.WindowsAppsDir, filepath.Join(localAppData, "Stars", "Apps"))
	setDefault(&c.LinuxBinDir, filepath.Join(home, ".local", "bin"))
	setDefault(&c.LinuxAppsDir, filepath.Join(home, ".local", "share", "stars", "apps"))
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func createDirs(cfg *Config) error {
	dirs := []string{
		cfg.DownloadDir,
		cfg.RunsDir,
		filepath.Dir(cfg.LibraryFile),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("directory created or verified", "path", dir)
	}
	return nil
}

// Layout returns the install roots.
func (c *Config) Layout() platform.Layout {
	return platform.Layout{
		ApplicationsDir: c.ApplicationsDir,
		WindowsAppsDir:  c.WindowsAppsDir,
		LinuxBinDir:     c.LinuxBinDir,
		LinuxAppsDir:    c.LinuxAppsDir,
	}
}

// HandoffDir is where macOS packages are kept for the system installer.
func (c *Config) HandoffDir() string {
	return filepath.Join(c.DataDir, "handoff")
}

// Elevation returns the privilege escalation prefix, which is empty when
// already running as root.
func (c *Config) Elevation() string {
	if os.Geteuid() == 0 {
		return ""
	}
	return c.ElevateCommand
}

// SetupLogger configures the global slog logger based on configuration and returns it.
// Supports "json" or "text" formats and log levels: debug, info, warn, error.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
