package mariadb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/provider"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
	"github.com/open-edge-platform/stack-installer/internal/utils/shell"
)

const myIni = `[mysqld]
basedir="{{.Base}}"
datadir="{{.Data}}"
port={{.Port}}
bind-address=127.0.0.1
character-set-server=utf8mb4
collation-server=utf8mb4_unicode_ci

[client]
port={{.Port}}
default-character-set=utf8mb4
`

// MariaDB implements provider.Configurer for the database server.
type MariaDB struct{}

func init() {
	provider.Register(&MariaDB{})
}

func (m *MariaDB) ID() catalog.PackageID { return catalog.MariaDB }

// Configure writes my.ini, creates the data directory and, when the
// distribution ships mariadb-install-db, initializes the system tables.
func (m *MariaDB) Configure(ctx context.Context, paths *provider.PathResolver, progress provider.ProgressFunc) error {
	root := paths.PackagePath(catalog.MariaDB)
	data := filepath.Join(root, "data")
	if err := os.MkdirAll(data, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	progress(50, "writing my.ini")

	vars := struct {
		Base, Data string
		Port       int
	}{provider.ConfigPath(root), provider.ConfigPath(data), paths.Ports.Database}
	if err := provider.RenderFile(filepath.Join(root, "my.ini"), myIni, vars); err != nil {
		return err
	}

	if err := initDataDir(ctx, root, data, paths.Ports.Database); err != nil {
		return err
	}

	logger.Logger().With("package", catalog.MariaDB).Infof("configured MariaDB on port %d", paths.Ports.Database)
	progress(100, "MariaDB configured")
	return nil
}

// initDataDir runs mariadb-install-db once. An already initialized data
// directory or a distribution without the tool is left alone.
func initDataDir(ctx context.Context, root, data string, port int) error {
	log := logger.Logger().With("package", catalog.MariaDB)
	if _, err := os.Stat(filepath.Join(data, "mysql")); err == nil {
		log.Debugf("data directory %s already initialized", data)
		return nil
	}
	tool := shell.FindExecutable(filepath.Join(root, "bin"), "mariadb-install-db")
	if tool == "" {
		log.Debugf("mariadb-install-db not found, skipping data directory initialization")
		return nil
	}
	_, err := shell.ExecCmdWithStream(ctx, root, tool,
		"--datadir="+data,
		fmt.Sprintf("--port=%d", port))
	if err != nil {
		return fmt.Errorf("initializing data directory: %w", err)
	}
	return nil
}
