package php

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/provider"
	"github.com/open-edge-platform/stack-installer/internal/utils/file"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

// Extensions enabled for a database backed stack.
var defaultExtensions = []string{"mysqli", "pdo_mysql", "mbstring", "openssl", "curl"}

// PHP implements provider.Configurer for the scripting runtime.
type PHP struct{}

func init() {
	provider.Register(&PHP{})
}

func (p *PHP) ID() catalog.PackageID { return catalog.PHP }

// IniPath is the php.ini of an install.
func IniPath(paths *provider.PathResolver) string {
	return filepath.Join(paths.PackagePath(catalog.PHP), "php.ini")
}

// Configure creates php.ini from the bundled development template and points
// it at the extension directory.
func (p *PHP) Configure(ctx context.Context, paths *provider.PathResolver, progress provider.ProgressFunc) error {
	log := logger.Logger().With("package", catalog.PHP)
	root := paths.PackagePath(catalog.PHP)
	ini := IniPath(paths)

	if !file.Exists(ini) {
		created := false
		for _, tmpl := range []string{"php.ini-development", "php.ini-production"} {
			src := filepath.Join(root, tmpl)
			if file.Exists(src) {
				if err := file.CopyFile(src, ini); err != nil {
					return fmt.Errorf("creating php.ini from %s: %w", tmpl, err)
				}
				created = true
				break
			}
		}
		if !created {
			log.Warnf("no php.ini template in %s, starting from an empty file", root)
			if err := os.WriteFile(ini, nil, 0644); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	progress(40, "updating php.ini")

	err := provider.RewriteFile(ini, func(content string) (string, error) {
		content = provider.SetIniValue(content, "extension_dir", fmt.Sprintf(`"%s"`, provider.ConfigPath(filepath.Join(root, "ext"))))
		for _, ext := range defaultExtensions {
			content = provider.EnableIniLine(content, "extension="+ext)
		}
		if paths.Installed(catalog.MariaDB) {
			content = provider.SetIniValue(content, "mysqli.default_port", fmt.Sprint(paths.Ports.Database))
		}
		return content, nil
	})
	if err != nil {
		return err
	}

	log.Infof("configured PHP with extensions %v", defaultExtensions)
	progress(100, "PHP configured")
	return nil
}
