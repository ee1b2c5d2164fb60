package mariadb

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/provider"
)

func TestConfigureWritesMyIni(t *testing.T) {
	root := t.TempDir()
	pkg, _ := catalog.Static(catalog.MariaDB)
	paths := provider.NewPathResolver(root, provider.Ports{Database: 3307}, []catalog.Package{pkg})

	if err := (&MariaDB{}).Configure(context.Background(), paths, func(int, string) {}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	base := filepath.Join(root, "apps", "mariadb")
	if info, err := os.Stat(filepath.Join(base, "data")); err != nil || !info.IsDir() {
		t.Errorf("data directory not created: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(base, "my.ini"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"port=3307", `datadir="` + filepath.ToSlash(filepath.Join(base, "data")) + `"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("my.ini missing %q:\n%s", want, data)
		}
	}
}

func TestConfigureCancelled(t *testing.T) {
	pkg, _ := catalog.Static(catalog.MariaDB)
	paths := provider.NewPathResolver(t.TempDir(), provider.Ports{Database: 3306}, []catalog.Package{pkg})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (&MariaDB{}).Configure(ctx, paths, func(int, string) {}); err == nil {
		t.Errorf("expected cancellation error")
	}
}

func TestConfigureRunsInstallDB(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script in place of mariadb-install-db")
	}
	root := t.TempDir()
	pkg, _ := catalog.Static(catalog.MariaDB)
	paths := provider.NewPathResolver(root, provider.Ports{Database: 3310}, []catalog.Package{pkg})
	bin := filepath.Join(root, "apps", "mariadb", "bin")
	if err := os.MkdirAll(bin, 0755); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\nfor a in \"$@\"; do echo \"$a\" >> args.txt; done\n"
	if err := os.WriteFile(filepath.Join(bin, "mariadb-install-db"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	if err := (&MariaDB{}).Configure(context.Background(), paths, func(int, string) {}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	args, err := os.ReadFile(filepath.Join(root, "apps", "mariadb", "args.txt"))
	if err != nil {
		t.Fatalf("mariadb-install-db was not run: %v", err)
	}
	for _, want := range []string{"--datadir=" + filepath.Join(root, "apps", "mariadb", "data"), "--port=3310"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("arguments missing %q:\n%s", want, args)
		}
	}
}

func TestConfigureSkipsInitializedDataDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script in place of mariadb-install-db")
	}
	root := t.TempDir()
	pkg, _ := catalog.Static(catalog.MariaDB)
	paths := provider.NewPathResolver(root, provider.Ports{Database: 3306}, []catalog.Package{pkg})
	base := filepath.Join(root, "apps", "mariadb")
	for _, d := range []string{filepath.Join(base, "bin"), filepath.Join(base, "data", "mysql")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(base, "bin", "mariadb-install-db"), []byte("#!/bin/sh\nexit 1\n"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := (&MariaDB{}).Configure(context.Background(), paths, func(int, string) {}); err != nil {
		t.Fatalf("Configure should not rerun install-db: %v", err)
	}
}
