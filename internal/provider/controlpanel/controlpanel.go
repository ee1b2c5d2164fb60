package controlpanel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/provider"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

// ConfigFileName is read by the control panel at startup.
const ConfigFileName = "stack-control-panel.yaml"

// Service is one entry the panel can start and stop.
type Service struct {
	Name       string `yaml:"name"`
	Executable string `yaml:"executable"`
	Port       int    `yaml:"port,omitempty"`
}

// Settings is the panel configuration document.
type Settings struct {
	InstallRoot string         `yaml:"installRoot"`
	Htdocs      string         `yaml:"htdocs"`
	Ports       provider.Ports `yaml:"ports"`
	Services    []Service      `yaml:"services"`
}

// ControlPanel implements provider.Configurer for the service control panel.
type ControlPanel struct{}

func init() {
	provider.Register(&ControlPanel{})
}

func (c *ControlPanel) ID() catalog.PackageID { return catalog.ControlPanel }

func (c *ControlPanel) Configure(ctx context.Context, paths *provider.PathResolver, progress provider.ProgressFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	settings := BuildSettings(paths)
	out, err := yaml.Marshal(&settings)
	if err != nil {
		return fmt.Errorf("encoding panel settings: %w", err)
	}
	target := filepath.Join(paths.InstallRoot, ConfigFileName)
	if err := os.WriteFile(target, out, 0644); err != nil {
		return err
	}
	logger.Logger().With("package", catalog.ControlPanel).Infof("wrote %s with %d services", target, len(settings.Services))
	progress(100, "Control panel configured")
	return nil
}

// BuildSettings lists the installed servers the panel manages.
func BuildSettings(paths *provider.PathResolver) Settings {
	s := Settings{
		InstallRoot: provider.ConfigPath(paths.InstallRoot),
		Htdocs:      provider.ConfigPath(paths.HtdocsDir()),
		Ports:       paths.Ports,
	}
	if paths.Installed(catalog.Apache) {
		s.Services = append(s.Services, Service{
			Name:       "apache",
			Executable: provider.ConfigPath(filepath.Join(paths.PackagePath(catalog.Apache), "bin", "httpd.exe")),
			Port:       paths.Ports.HTTP,
		})
	}
	if paths.Installed(catalog.MariaDB) {
		s.Services = append(s.Services, Service{
			Name:       "mariadb",
			Executable: provider.ConfigPath(filepath.Join(paths.PackagePath(catalog.MariaDB), "bin", "mysqld.exe")),
			Port:       paths.Ports.Database,
		})
	}
	return s
}
