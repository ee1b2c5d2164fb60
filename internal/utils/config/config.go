package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalConfig is the installer-wide configuration loaded from YAML.
type GlobalConfig struct {
	InstallRoot  string             `yaml:"install_root"`
	TempDir      string             `yaml:"temp_dir"`
	ReportDir    string             `yaml:"report_dir"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Download     DownloadConfig     `yaml:"download"`
	Verification VerificationConfig `yaml:"verification"`
	Ports        PortsConfig        `yaml:"ports"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type CatalogConfig struct {
	// Source is one of auto, local or web.
	Source       string   `yaml:"source"`
	ManifestURL  string   `yaml:"manifest_url"`
	LocalFile    string   `yaml:"local_file"`
	AllowedHosts []string `yaml:"allowed_hosts"`
}

type DownloadConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
}

type VerificationConfig struct {
	// KeyringFile is an armored OpenPGP public keyring used for detached
	// signature checks. Empty disables signature verification.
	KeyringFile string `yaml:"keyring_file"`
}

type PortsConfig struct {
	HTTP     int `yaml:"http"`
	HTTPS    int `yaml:"https"`
	Database int `yaml:"database"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

const (
	DefaultManifestURL = "https://raw.githubusercontent.com/open-edge-platform/stack-installer/main/packages.json"
	DefaultUserAgent   = "stack-installer/1.0"
)

// DefaultGlobalConfig returns the configuration used when no file is given.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		InstallRoot: defaultInstallRoot(),
		ReportDir:   "reports",
		Catalog: CatalogConfig{
			Source:       "auto",
			ManifestURL:  DefaultManifestURL,
			LocalFile:    "packages.json",
			AllowedHosts: []string{"raw.githubusercontent.com", "github.com"},
		},
		Download: DownloadConfig{
			MaxAttempts: 3,
			BaseBackoff: time.Second,
			Timeout:     30 * time.Minute,
			UserAgent:   DefaultUserAgent,
		},
		Ports: PortsConfig{
			HTTP:     80,
			HTTPS:    443,
			Database: 3306,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultInstallRoot() string {
	if v := os.Getenv("SystemDrive"); v != "" {
		return v + `\stack`
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "stack"
	}
	return home + string(os.PathSeparator) + "stack"
}

// LoadGlobalConfig reads path on top of the defaults. An empty path returns
// the defaults.
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the installer cannot use.
func (c *GlobalConfig) Validate() error {
	switch strings.ToLower(c.Catalog.Source) {
	case "auto", "local", "web":
	default:
		return fmt.Errorf("catalog.source must be auto, local or web, got %q", c.Catalog.Source)
	}
	if c.Catalog.ManifestURL != "" {
		u, err := url.Parse(c.Catalog.ManifestURL)
		if err != nil {
			return fmt.Errorf("catalog.manifest_url: %w", err)
		}
		if u.Scheme != "https" {
			return fmt.Errorf("catalog.manifest_url must use https, got %q", u.Scheme)
		}
	}
	if c.Download.MaxAttempts < 1 {
		return fmt.Errorf("download.max_attempts must be at least 1, got %d", c.Download.MaxAttempts)
	}
	if c.Download.BaseBackoff < 0 {
		return fmt.Errorf("download.base_backoff must not be negative")
	}
	for name, port := range map[string]int{
		"ports.http":     c.Ports.HTTP,
		"ports.https":    c.Ports.HTTPS,
		"ports.database": c.Ports.Database,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
		}
	}
	return nil
}
