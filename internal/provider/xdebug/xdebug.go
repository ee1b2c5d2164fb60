package xdebug

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/provider"
	"github.com/open-edge-platform/stack-installer/internal/provider/php"
	"github.com/open-edge-platform/stack-installer/internal/utils/file"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

// Xdebug implements provider.Configurer for the debugging extension.
type Xdebug struct{}

func init() {
	provider.Register(&Xdebug{})
}

func (x *Xdebug) ID() catalog.PackageID { return catalog.Xdebug }

// Configure registers the extension in php.ini. The downloaded DLL is kept
// until now so it can be restored into ext/ if needed; it is deleted once the
// configuration is written.
func (x *Xdebug) Configure(ctx context.Context, paths *provider.PathResolver, progress provider.ProgressFunc) error {
	log := logger.Logger().With("package", catalog.Xdebug)
	pkg, ok := paths.Package(catalog.Xdebug)
	if !ok {
		return errors.New("xdebug is not part of this install")
	}
	name := pkg.ArchiveFileName()
	dll := filepath.Join(paths.PackagePath(catalog.Xdebug), name)
	artifact := filepath.Join(paths.DownloadsDir(), name)

	if !file.Exists(dll) {
		if !file.Exists(artifact) {
			return fmt.Errorf("%s not found in ext directory or downloads", name)
		}
		if err := file.CopyFile(artifact, dll); err != nil {
			return fmt.Errorf("restoring %s: %w", name, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	progress(50, "enabling Xdebug in php.ini")

	ini := php.IniPath(paths)
	if !file.Exists(ini) {
		return fmt.Errorf("php.ini not found at %s", ini)
	}
	block := fmt.Sprintf(`zend_extension="%s"
xdebug.mode=debug
xdebug.start_with_request=trigger
xdebug.client_port=9003`, provider.ConfigPath(dll))
	err := provider.RewriteFile(ini, func(content string) (string, error) {
		return provider.ReplaceBlock(content, ";", "xdebug", block), nil
	})
	if err != nil {
		return err
	}

	if err := os.Remove(artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("failed to remove %s: %v", artifact, err)
	}
	log.Infof("enabled %s", name)
	progress(100, "Xdebug configured")
	return nil
}
