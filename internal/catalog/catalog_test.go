package catalog_test

import (
	"strings"
	"testing"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
)

const validManifest = `[
  {"packageId": "apache", "version": "2.4.62", "downloadUrl": "https://example.com/httpd-2.4.62-win64.zip",
   "checksum": "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"},
  {"packageId": "php", "name": "PHP 8.3", "version": "8.3.11", "downloadUrl": "https://example.com/php-8.3.11.zip",
   "checksumUrl": "https://example.com/php-8.3.11.zip.sha256"},
  {"packageId": "xdebug", "version": "3.3.2", "downloadUrl": "https://example.com/files/php_xdebug-3.3.2-8.3-vs16-x86_64.dll"},
  {"packageId": "future-tool", "version": "1.0.0", "downloadUrl": "https://example.com/future.zip"}
]`

func TestParseManifestAndBuildCatalog(t *testing.T) {
	entries, err := catalog.ParseManifest([]byte(validManifest))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	pkgs, err := catalog.BuildCatalog(entries)
	if err != nil {
		t.Fatalf("BuildCatalog failed: %v", err)
	}
	if len(pkgs) != 3 {
		t.Fatalf("expected unknown entry to be skipped, got %d packages", len(pkgs))
	}

	apache := pkgs[0]
	if apache.ID != catalog.Apache || apache.RelativeInstallPath != "apps/apache" {
		t.Errorf("static metadata not merged into apache: %+v", apache)
	}
	if apache.Checksum != strings.Repeat("a", 64) {
		t.Errorf("checksum not normalized: %q", apache.Checksum)
	}

	php := pkgs[1]
	if php.Name != "PHP 8.3" {
		t.Errorf("manifest name should override static name, got %q", php.Name)
	}
	if !php.DependsOn(catalog.Apache) {
		t.Errorf("php should depend on apache")
	}

	xdebug := pkgs[2]
	if xdebug.Kind != catalog.ArchiveSingleBinary {
		t.Errorf("xdebug kind = %s", xdebug.Kind)
	}
	if len(xdebug.Markers) != 1 || xdebug.Markers[0] != "php_xdebug-3.3.2-8.3-vs16-x86_64.dll" {
		t.Errorf("xdebug marker should be the artifact name, got %v", xdebug.Markers)
	}
}

func TestParseManifestYAML(t *testing.T) {
	doc := `
- packageId: mariadb
  version: 11.4.3
  downloadUrl: https://example.com/mariadb-11.4.3-linux-x86_64.tar.xz
  archiveKind: tar.xz
  sizeBytes: 1024
`
	entries, err := catalog.ParseManifest([]byte(doc))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	pkgs, err := catalog.BuildCatalog(entries)
	if err != nil {
		t.Fatalf("BuildCatalog failed: %v", err)
	}
	if pkgs[0].Kind != catalog.ArchiveTarXz {
		t.Errorf("archive kind override not applied: %s", pkgs[0].Kind)
	}
	if pkgs[0].EstimatedSizeBytes != 1024 {
		t.Errorf("size override not applied: %d", pkgs[0].EstimatedSizeBytes)
	}
}

func TestParseManifestRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "  "},
		{"empty_array", "[]"},
		{"missing_version", `[{"packageId": "php", "downloadUrl": "https://example.com/php.zip"}]`},
		{"both_checksums", `[{"packageId": "php", "version": "8.3.0", "downloadUrl": "https://example.com/php.zip",
			"checksum": "` + strings.Repeat("b", 64) + `", "checksumUrl": "https://example.com/php.sha256"}]`},
		{"bad_checksum", `[{"packageId": "php", "version": "8.3.0", "downloadUrl": "https://example.com/php.zip", "checksum": "xyz"}]`},
		{"unknown_field", `[{"packageId": "php", "version": "8.3.0", "downloadUrl": "https://example.com/php.zip", "mirror": "x"}]`},
		{"not_array", `{"packageId": "php"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := catalog.ParseManifest([]byte(tt.doc)); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestBuildCatalogRejects(t *testing.T) {
	dup := []catalog.ManifestEntry{
		{PackageID: "apache", Version: "2.4.62", DownloadURL: "https://example.com/a.zip"},
		{PackageID: "APACHE", Version: "2.4.63", DownloadURL: "https://example.com/b.zip"},
	}
	if _, err := catalog.BuildCatalog(dup); err == nil {
		t.Errorf("expected duplicate error")
	}

	badVersion := []catalog.ManifestEntry{
		{PackageID: "apache", Version: "latest", DownloadURL: "https://example.com/a.zip"},
	}
	if _, err := catalog.BuildCatalog(badVersion); err == nil {
		t.Errorf("expected version error")
	}

	override := []catalog.ManifestEntry{
		{PackageID: "composer", Version: "2.7.9", DownloadURL: "https://example.com/composer.phar", ArchiveKind: "zip"},
	}
	if _, err := catalog.BuildCatalog(override); err == nil {
		t.Errorf("expected error overriding a single-file kind")
	}
}

func TestPackageValidateSelfDependency(t *testing.T) {
	p, _ := catalog.Static(catalog.PHP)
	p.Version = "8.3.0"
	p.DownloadURL = "https://example.com/php.zip"
	p.Dependencies = append(p.Dependencies, catalog.PHP)
	if err := p.Validate(); err == nil || !strings.Contains(err.Error(), "itself") {
		t.Errorf("Validate() = %v, want self-dependency error", err)
	}
}

func TestStaticReturnsCopies(t *testing.T) {
	a, _ := catalog.Static(catalog.PhpMyAdmin)
	a.Dependencies[0] = catalog.Composer
	b, _ := catalog.Static(catalog.PhpMyAdmin)
	if b.Dependencies[0] != catalog.PHP {
		t.Errorf("static metadata mutated through returned copy")
	}
}

func TestArchiveFileName(t *testing.T) {
	p := catalog.Package{ID: catalog.Apache, Kind: catalog.ArchiveZip, DownloadURL: "https://example.com/dl/httpd.zip?token=1"}
	if got := p.ArchiveFileName(); got != "httpd.zip" {
		t.Errorf("ArchiveFileName() = %q", got)
	}
	p.DownloadURL = "https://example.com/"
	if got := p.ArchiveFileName(); got != "apache.zip" {
		t.Errorf("ArchiveFileName() fallback = %q", got)
	}
}

func TestParsePackageID(t *testing.T) {
	if id, err := catalog.ParsePackageID(" PHP "); err != nil || id != catalog.PHP {
		t.Errorf("ParsePackageID = %q, %v", id, err)
	}
	if _, err := catalog.ParsePackageID("nginx"); err == nil {
		t.Errorf("expected error for unknown id")
	}
}
