package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigHelpers provides convenient access to global configuration
type ConfigHelpers struct {
	config *GlobalConfig
}

// NewConfigHelpers creates a new config helpers instance
func NewConfigHelpers(config *GlobalConfig) *ConfigHelpers {
	return &ConfigHelpers{config: config}
}

// InstallRoot returns the absolute path to the default install root
func (c *ConfigHelpers) InstallRoot() (string, error) {
	return filepath.Abs(c.config.InstallRoot)
}

// TempDir returns the temporary directory path
func (c *ConfigHelpers) TempDir() string {
	if c.config.TempDir == "" {
		return os.TempDir()
	}
	return c.config.TempDir
}

// ReportDir returns the absolute path to the run report directory
func (c *ConfigHelpers) ReportDir() (string, error) {
	return filepath.Abs(c.config.ReportDir)
}

// CatalogSource returns the normalized catalog source name
func (c *ConfigHelpers) CatalogSource() string {
	return strings.ToLower(c.config.Catalog.Source)
}

// LocalCatalogPath resolves the bundled packages file. Relative paths are
// looked up in the working directory first, then next to the executable.
func (c *ConfigHelpers) LocalCatalogPath() string {
	file := c.config.Catalog.LocalFile
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	if _, err := os.Stat(file); err == nil {
		abs, err := filepath.Abs(file)
		if err == nil {
			return abs
		}
	}
	exe, err := os.Executable()
	if err != nil {
		return file
	}
	return filepath.Join(filepath.Dir(exe), file)
}

// LogLevel returns the configured log level
func (c *ConfigHelpers) LogLevel() string {
	return c.config.Logging.Level
}

// IsDebugMode returns true if debug logging is enabled
func (c *ConfigHelpers) IsDebugMode() bool {
	return c.config.Logging.Level == "debug"
}

// CreateReportDir ensures the report directory exists
func (c *ConfigHelpers) CreateReportDir() (string, error) {
	reportDir, err := c.ReportDir()
	if err != nil {
		return "", fmt.Errorf("resolving report directory: %w", err)
	}
	return reportDir, createDirIfNotExists(reportDir)
}

// CreateTempDir ensures a temp subdirectory exists
func (c *ConfigHelpers) CreateTempDir(subdir string) (string, error) {
	tempDir := filepath.Join(c.TempDir(), subdir)
	err := createDirIfNotExists(tempDir)
	return tempDir, err
}

// Helper function to create directories
func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
