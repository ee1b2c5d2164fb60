package xdebug

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/provider"
	"github.com/open-edge-platform/stack-installer/internal/provider/php"
)

const dllName = "php_xdebug-3.3.2-8.3-vs16-x86_64.dll"

func setup(t *testing.T, installDLL bool) *provider.PathResolver {
	t.Helper()
	root := t.TempDir()
	phpDir := filepath.Join(root, "apps", "php")
	for _, d := range []string{filepath.Join(phpDir, "ext"), filepath.Join(root, "downloads")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(phpDir, "php.ini"), []byte("[PHP]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "downloads", dllName), []byte("dll"), 0644); err != nil {
		t.Fatal(err)
	}
	if installDLL {
		if err := os.WriteFile(filepath.Join(phpDir, "ext", dllName), []byte("dll"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	phpPkg, _ := catalog.Static(catalog.PHP)
	x, _ := catalog.Static(catalog.Xdebug)
	x.DownloadURL = "https://xdebug.org/files/" + dllName
	return provider.NewPathResolver(root, provider.Ports{}, []catalog.Package{phpPkg, x})
}

func TestConfigureEnablesExtensionAndDropsArtifact(t *testing.T) {
	paths := setup(t, true)
	if err := (&Xdebug{}).Configure(context.Background(), paths, func(int, string) {}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	data, err := os.ReadFile(php.IniPath(paths))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `zend_extension="`) || !strings.Contains(string(data), dllName) {
		t.Errorf("php.ini does not load xdebug:\n%s", data)
	}
	if _, err := os.Stat(filepath.Join(paths.DownloadsDir(), dllName)); !os.IsNotExist(err) {
		t.Errorf("downloaded artifact should be deleted after configuration")
	}
}

func TestConfigureRestoresMissingDLL(t *testing.T) {
	paths := setup(t, false)
	if err := (&Xdebug{}).Configure(context.Background(), paths, func(int, string) {}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(paths.PackagePath(catalog.Xdebug), dllName)); err != nil {
		t.Errorf("DLL not restored from downloads: %v", err)
	}
}

func TestConfigureRequiresPHPIni(t *testing.T) {
	paths := setup(t, true)
	if err := os.Remove(php.IniPath(paths)); err != nil {
		t.Fatal(err)
	}
	if err := (&Xdebug{}).Configure(context.Background(), paths, func(int, string) {}); err == nil {
		t.Errorf("expected error without php.ini")
	}
}
