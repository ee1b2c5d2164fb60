package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/open-edge-platform/stack-installer/internal/utils/file"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestIsDirEmpty(t *testing.T) {
	dir := t.TempDir()
	empty, err := file.IsDirEmpty(dir)
	if err != nil || !empty {
		t.Fatalf("IsDirEmpty(empty) = %v, %v", empty, err)
	}
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	empty, err = file.IsDirEmpty(dir)
	if err != nil || empty {
		t.Fatalf("IsDirEmpty(non-empty) = %v, %v", empty, err)
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "composer.phar")
	dst := filepath.Join(dir, "apps", "composer", "composer.phar")
	writeFile(t, src, "phar")

	if err := file.MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if file.Exists(src) {
		t.Errorf("source still exists after move")
	}
	if got := readFile(t, dst); got != "phar" {
		t.Errorf("destination content = %q", got)
	}
}

func TestCopyTreeKeepsSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bundle")
	writeFile(t, filepath.Join(src, "vcruntime140.dll"), "dll")
	writeFile(t, filepath.Join(src, "sub", "msvcp140.dll"), "dll2")

	dst := filepath.Join(dir, "apps", "php")
	if err := file.CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree failed: %v", err)
	}
	if got := readFile(t, filepath.Join(dst, "sub", "msvcp140.dll")); got != "dll2" {
		t.Errorf("copied content = %q", got)
	}
	if !file.Exists(filepath.Join(src, "vcruntime140.dll")) {
		t.Errorf("CopyTree must not remove the source")
	}
}

func TestMergeDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "staging")
	dst := filepath.Join(dir, "root")

	writeFile(t, filepath.Join(src, "panel.exe"), "new")
	writeFile(t, filepath.Join(src, "apps", "panel", "panel.ini"), "ini")
	writeFile(t, filepath.Join(dst, "panel.exe"), "old")
	writeFile(t, filepath.Join(dst, "apps", "apache", "httpd.exe"), "httpd")

	if err := file.MergeDir(src, dst); err != nil {
		t.Fatalf("MergeDir failed: %v", err)
	}
	if got := readFile(t, filepath.Join(dst, "panel.exe")); got != "new" {
		t.Errorf("file not replaced, got %q", got)
	}
	if !file.Exists(filepath.Join(dst, "apps", "apache", "httpd.exe")) {
		t.Errorf("existing sibling removed by merge")
	}
	if !file.Exists(filepath.Join(dst, "apps", "panel", "panel.ini")) {
		t.Errorf("nested entry not merged")
	}
	if file.Exists(src) {
		t.Errorf("staging directory not removed")
	}
}
