package apache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/provider"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

// phpModuleFile is the Apache handler shipped with thread-safe PHP builds.
const phpModuleFile = "php8apache2_4.dll"

// Apache implements provider.Configurer for the web server.
type Apache struct{}

func init() {
	provider.Register(&Apache{})
}

func (a *Apache) ID() catalog.PackageID { return catalog.Apache }

// Configure points httpd.conf at the install root, the chosen HTTP port and
// the shared document root, and loads PHP when it is part of the install.
func (a *Apache) Configure(ctx context.Context, paths *provider.PathResolver, progress provider.ProgressFunc) error {
	log := logger.Logger().With("package", catalog.Apache)
	root := paths.PackagePath(catalog.Apache)
	conf := filepath.Join(root, "conf", "httpd.conf")
	if _, err := os.Stat(conf); err != nil {
		return fmt.Errorf("httpd.conf not found: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	progress(10, "updating httpd.conf")

	htdocs := paths.HtdocsDir()
	if err := os.MkdirAll(htdocs, 0755); err != nil {
		return err
	}

	err := provider.RewriteFile(conf, func(content string) (string, error) {
		var err error
		content, err = provider.SetDirective(content, `^Define SRVROOT .*$`,
			fmt.Sprintf(`Define SRVROOT "%s"`, provider.ConfigPath(root)))
		if err != nil {
			return "", err
		}
		content, err = provider.SetDirective(content, `^Listen .*$`, fmt.Sprintf("Listen %d", paths.Ports.HTTP))
		if err != nil {
			return "", err
		}
		// These are optional in trimmed-down configs.
		if c, err := provider.SetDirective(content, `^#?ServerName .*$`,
			fmt.Sprintf("ServerName localhost:%d", paths.Ports.HTTP)); err == nil {
			content = c
		}
		if c, err := provider.SetDirective(content, `^DocumentRoot .*$`,
			fmt.Sprintf(`DocumentRoot "%s"`, provider.ConfigPath(htdocs))); err == nil {
			content = c
		}
		if c, err := provider.SetDirective(content, `^<Directory "\$\{SRVROOT\}/htdocs">$`,
			fmt.Sprintf(`<Directory "%s">`, provider.ConfigPath(htdocs))); err == nil {
			content = c
		}
		return provider.ReplaceBlock(content, "#", "stack-installer php", phpBlock(paths)), nil
	})
	if err != nil {
		return err
	}

	log.Infof("configured Apache on port %d with document root %s", paths.Ports.HTTP, htdocs)
	progress(100, "Apache configured")
	return nil
}

// phpBlock loads the PHP handler when PHP is installed and ships the module.
func phpBlock(paths *provider.PathResolver) string {
	if !paths.Installed(catalog.PHP) {
		return "# PHP not installed"
	}
	php := paths.PackagePath(catalog.PHP)
	module := filepath.Join(php, phpModuleFile)
	if _, err := os.Stat(module); err != nil {
		logger.Logger().Warnf("%s not found, Apache will not load PHP", module)
		return "# PHP module not found"
	}
	return fmt.Sprintf(`LoadModule php_module "%s"
AddHandler application/x-httpd-php .php
PHPIniDir "%s"
DirectoryIndex index.php index.html`, provider.ConfigPath(module), provider.ConfigPath(php))
}
