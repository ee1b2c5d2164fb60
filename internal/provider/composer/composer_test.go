package composer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/provider"
)

func TestConfigureWritesLauncher(t *testing.T) {
	root := t.TempDir()
	pkg, _ := catalog.Static(catalog.Composer)
	paths := provider.NewPathResolver(root, provider.Ports{}, []catalog.Package{pkg})

	if err := (&Composer{}).Configure(context.Background(), paths, func(int, string) {}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "apps", "composer", "composer.bat"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "php.exe") || !strings.Contains(string(data), "%~dp0composer.phar") {
		t.Errorf("unexpected launcher:\n%s", data)
	}
}
