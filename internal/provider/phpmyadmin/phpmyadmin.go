package phpmyadmin

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/provider"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

const configTemplate = `<?php
declare(strict_types=1);

$cfg['blowfish_secret'] = '{{.Secret}}';

$i = 0;
$i++;
$cfg['Servers'][$i]['auth_type'] = 'cookie';
$cfg['Servers'][$i]['host'] = '127.0.0.1';
$cfg['Servers'][$i]['port'] = '{{.Port}}';
$cfg['Servers'][$i]['compress'] = false;
$cfg['Servers'][$i]['AllowNoPassword'] = true;

$cfg['UploadDir'] = '';
$cfg['SaveDir'] = '';
$cfg['TempDir'] = '{{.Temp}}';
`

// PhpMyAdmin implements provider.Configurer for the database admin tool.
type PhpMyAdmin struct{}

func init() {
	provider.Register(&PhpMyAdmin{})
}

func (p *PhpMyAdmin) ID() catalog.PackageID { return catalog.PhpMyAdmin }

// Configure writes config.inc.php with a fresh cookie secret.
func (p *PhpMyAdmin) Configure(ctx context.Context, paths *provider.PathResolver, progress provider.ProgressFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	root := paths.PackagePath(catalog.PhpMyAdmin)
	progress(50, "writing config.inc.php")

	vars := struct {
		Secret string
		Port   int
		Temp   string
	}{
		Secret: BlowfishSecret(),
		Port:   paths.Ports.Database,
		Temp:   provider.ConfigPath(filepath.Join(root, "tmp")),
	}
	if err := provider.RenderFile(filepath.Join(root, "config.inc.php"), configTemplate, vars); err != nil {
		return err
	}

	logger.Logger().With("package", catalog.PhpMyAdmin).Info("configured phpMyAdmin")
	progress(100, "phpMyAdmin configured")
	return nil
}

// BlowfishSecret returns a random 32 character secret.
func BlowfishSecret() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
