package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"STARS_ENV" default:"development"`

	HTTPPort    int           `envconfig:"STARS_HTTP_PORT" default:"8080"`
	HTTPTimeout time.Duration `envconfig:"STARS_HTTP_TIMEOUT" default:"15s"`

	CatalogURL     string        `envconfig:"STARS_CATALOG_URL" default:"http://localhost:4200"`
	CatalogTimeout time.Duration `envconfig:"STARS_CATALOG_TIMEOUT" default:"10s"`
	CatalogRetries int           `envconfig:"STARS_CATALOG_RETRIES" default:"2"`

	DownloadTimeout time.Duration `envconfig:"STARS_DOWNLOAD_TIMEOUT" default:"30m"`
	DownloadRetries int           `envconfig:"STARS_DOWNLOAD_RETRIES" default:"2"`

	// Empty directory settings are derived from the user's home directory by Load.
	DataDir     string `envconfig:"STARS_DATA_DIR"`
	DownloadDir string `envconfig:"STARS_DOWNLOAD_DIR"`
	LibraryFile string `envconfig:"STARS_LIBRARY_FILE"`
	RunsDir     string `envconfig:"STARS_RUNS_DIR"`

	ApplicationsDir string `envconfig:"STARS_APPLICATIONS_DIR" default:"/Applications"`
	WindowsAppsDir  string `envconfig:"STARS_WINDOWS_APPS_DIR"`
	LinuxBinDir     string `envconfig:"STARS_LINUX_BIN_DIR"`
	LinuxAppsDir    string `envconfig:"STARS_LINUX_APPS_DIR"`

	ElevateCommand string `envconfig:"STARS_ELEVATE_COMMAND" default:"pkexec"`

	ShutdownTimeout time.Duration `envconfig:"STARS_SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"STARS_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"STARS_LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	u, err := url.Parse(c.CatalogURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid catalog URL: %q", c.CatalogURL)
	}

	if c.CatalogRetries < 0 {
		return fmt.Errorf("catalog retries cannot be negative: %d", c.CatalogRetries)
	}
	if c.DownloadRetries < 0 {
		return fmt.Errorf("download retries cannot be negative: %d", c.DownloadRetries)
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be positive: %s", c.DownloadTimeout)
	}

	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.LibraryFile == "" {
		return fmt.Errorf("library file cannot be empty")
	}
	if c.RunsDir == "" {
		return fmt.Errorf("runs directory cannot be empty")
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q", c.LogFormat)
	}

	return nil
}
