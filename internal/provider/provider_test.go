package provider_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/provider"
)

type stubConfigurer struct{ id catalog.PackageID }

func (s stubConfigurer) ID() catalog.PackageID { return s.id }
func (s stubConfigurer) Configure(context.Context, *provider.PathResolver, provider.ProgressFunc) error {
	return nil
}

func TestRegisterAndGet(t *testing.T) {
	provider.Register(stubConfigurer{id: "stub"})
	c, ok := provider.Get("stub")
	if !ok || c.ID() != "stub" {
		t.Fatalf("Get(stub) = %v, %v", c, ok)
	}
	if _, ok := provider.Get("missing"); ok {
		t.Errorf("unexpected configurer for unknown id")
	}
	found := false
	for _, id := range provider.Registered() {
		if id == "stub" {
			found = true
		}
	}
	if !found {
		t.Errorf("Registered() does not list stub")
	}
}

func TestPathResolver(t *testing.T) {
	root := filepath.Join("srv", "stack")
	php, _ := catalog.Static(catalog.PHP)
	r := provider.NewPathResolver(root, provider.Ports{HTTP: 8080}, []catalog.Package{php})

	if !r.Installed(catalog.PHP) || r.Installed(catalog.MariaDB) {
		t.Errorf("Installed reports the wrong set")
	}
	if got, want := r.PackagePath(catalog.PHP), filepath.Join(root, "apps", "php"); got != want {
		t.Errorf("PackagePath(php) = %s, want %s", got, want)
	}
	if got, want := r.PackagePath(catalog.MariaDB), filepath.Join(root, "apps", "mariadb"); got != want {
		t.Errorf("PackagePath(mariadb) = %s, want %s", got, want)
	}
	if got, want := r.HtdocsDir(), filepath.Join(root, "htdocs"); got != want {
		t.Errorf("HtdocsDir = %s, want %s", got, want)
	}
}

func TestSetIniValue(t *testing.T) {
	in := "[PHP]\n;extension_dir = \"ext\"\nmemory_limit = 128M\n"
	out := provider.SetIniValue(in, "extension_dir", `"C:/stack/apps/php/ext"`)
	if !strings.Contains(out, "extension_dir = \"C:/stack/apps/php/ext\"\n") || strings.Contains(out, ";extension_dir") {
		t.Errorf("commented directive not replaced:\n%s", out)
	}
	out = provider.SetIniValue(out, "date.timezone", "UTC")
	if !strings.HasSuffix(out, "date.timezone = UTC\n") {
		t.Errorf("missing directive not appended:\n%s", out)
	}
}

func TestEnableIniLine(t *testing.T) {
	in := ";extension=mysqli\n;extension=pdo_mysqli_extra\n"
	out := provider.EnableIniLine(in, "extension=mysqli")
	if !strings.HasPrefix(out, "extension=mysqli\n") || !strings.Contains(out, ";extension=pdo_mysqli_extra") {
		t.Errorf("unexpected result:\n%s", out)
	}
	out = provider.EnableIniLine(out, "extension=mbstring")
	if strings.Count(out, "extension=mbstring") != 1 {
		t.Errorf("line not appended once:\n%s", out)
	}
}

func TestReplaceBlockIsIdempotent(t *testing.T) {
	content := "a\n"
	content = provider.ReplaceBlock(content, ";", "xdebug", "zend_extension=one")
	content = provider.ReplaceBlock(content, ";", "xdebug", "zend_extension=two")
	if strings.Count(content, "BEGIN xdebug") != 1 || strings.Contains(content, "one") || !strings.Contains(content, "two") {
		t.Errorf("unexpected content:\n%s", content)
	}
}

func TestSetDirectiveMissing(t *testing.T) {
	if _, err := provider.SetDirective("Listen 80\n", `^Define SRVROOT .*$`, "x"); err == nil {
		t.Errorf("expected error for missing directive")
	}
	out, err := provider.SetDirective("Listen 80\n", `^Listen .*$`, "Listen 8080")
	if err != nil || out != "Listen 8080\n" {
		t.Errorf("SetDirective = %q, %v", out, err)
	}
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "x.ini")
	if err := provider.RenderFile(path, "port={{.Port}}\n", struct{ Port int }{3307}); err != nil {
		t.Fatalf("RenderFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "port=3307\n" {
		t.Errorf("rendered %q, %v", data, err)
	}
	if err := provider.RenderFile(path, "{{.Missing}}", struct{}{}); err == nil {
		t.Errorf("expected error for unknown field")
	}
}
