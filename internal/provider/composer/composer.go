package composer

import (
	"context"
	"path/filepath"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/provider"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

const wrapper = "@ECHO OFF\r\n\"{{.PHP}}\" \"%~dp0composer.phar\" %*\r\n"

// Composer implements provider.Configurer for the dependency manager.
type Composer struct{}

func init() {
	provider.Register(&Composer{})
}

func (c *Composer) ID() catalog.PackageID { return catalog.Composer }

// Configure writes a composer.bat launcher next to composer.phar that runs it
// with the installed PHP.
func (c *Composer) Configure(ctx context.Context, paths *provider.PathResolver, progress provider.ProgressFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := paths.PackagePath(catalog.Composer)
	phpExe := filepath.Join(paths.PackagePath(catalog.PHP), "php.exe")

	vars := struct{ PHP string }{PHP: filepath.FromSlash(phpExe)}
	if err := provider.RenderFile(filepath.Join(dir, "composer.bat"), wrapper, vars); err != nil {
		return err
	}
	logger.Logger().With("package", catalog.Composer).Infof("wrote launcher in %s", dir)
	progress(100, "Composer configured")
	return nil
}
