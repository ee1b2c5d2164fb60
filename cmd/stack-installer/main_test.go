package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/event"
	"github.com/open-edge-platform/stack-installer/internal/utils/config"
)

const testManifest = `[
  {"packageId": "apache", "version": "2.4.62", "downloadUrl": "https://example.com/httpd.zip"},
  {"packageId": "php", "version": "8.3.10", "downloadUrl": "https://example.com/php.zip"},
  {"packageId": "mariadb", "version": "11.4.2", "downloadUrl": "https://example.com/mariadb.zip"},
  {"packageId": "phpmyadmin", "version": "5.2.1", "downloadUrl": "https://example.com/pma.zip"}
]`

// writeLocalConfig writes a manifest and a config file that loads it without
// network access.
func writeLocalConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	manifest := filepath.Join(dir, "packages.json")
	if err := os.WriteFile(manifest, []byte(testManifest), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := "catalog:\n  source: local\n  local_file: " + filepath.ToSlash(manifest) + "\nlogging:\n  level: error\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prevConfig, prevLevel, prevVerbose, prevJSON := configFile, logLevel, verbose, listJSON
	t.Cleanup(func() {
		configFile, logLevel, verbose, listJSON = prevConfig, prevLevel, prevVerbose, prevJSON
		globalConfig = config.DefaultGlobalConfig()
	})
	root := createRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestResolveRequestedLogLevelPrefersExplicitFlag(t *testing.T) {
	prev := logLevel
	logLevel = "warn"
	t.Cleanup(func() {
		logLevel = prev
	})

	if got := resolveRequestedLogLevel(nil); got != "warn" {
		t.Fatalf("expected explicit log level to win, got %q", got)
	}
}

func TestResolveRequestedLogLevelUsesVerboseFallback(t *testing.T) {
	prev := logLevel
	logLevel = ""
	t.Cleanup(func() {
		logLevel = prev
	})

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("verbose", false, "")
	if err := cmd.Flags().Set("verbose", "true"); err != nil {
		t.Fatalf("set verbose: %v", err)
	}

	if got := resolveRequestedLogLevel(cmd); got != "debug" {
		t.Fatalf("expected verbose flag to set debug level, got %q", got)
	}
}

func TestResolveRequestedLogLevelIgnoresUnsetVerbose(t *testing.T) {
	prev := logLevel
	logLevel = ""
	t.Cleanup(func() {
		logLevel = prev
	})

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("verbose", false, "")

	if got := resolveRequestedLogLevel(cmd); got != "" {
		t.Fatalf("expected empty when verbose not set, got %q", got)
	}
}

func TestLogLevelFlagRejectsUnknownLevel(t *testing.T) {
	if _, err := execute(t, "--log-level", "chatty", "version"); err == nil {
		t.Fatal("expected error for unknown log level")
	}
	var level string
	f := &levelFlag{target: &level}
	if err := f.Set("WARN"); err != nil {
		t.Fatalf("Set(WARN) failed: %v", err)
	}
	if level != "warn" || f.Type() != "level" {
		t.Errorf("level = %q, type = %q", level, f.Type())
	}
}

func TestAttachLoggingHooksAddsHookToSubcommands(t *testing.T) {
	root := createRootCommand()
	for _, name := range []string{"install", "list", "resolve", "validate-config", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == nil || cmd.Name() != name {
			t.Fatalf("find %s command: %v", name, err)
		}
		if cmd.PersistentPreRunE == nil {
			t.Errorf("expected logging hook on %s command", name)
		}
	}
}

func TestListCommandReadsLocalCatalog(t *testing.T) {
	cfg := writeLocalConfig(t)
	out, err := execute(t, "--config", cfg, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, want := range []string{"apache", "8.3.10", "phpmyadmin", "php,mariadb"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestListCommandJSON(t *testing.T) {
	cfg := writeLocalConfig(t)
	out, err := execute(t, "--config", cfg, "list", "--json")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var views []packageView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(views) != 4 || views[0].ID != "apache" {
		t.Errorf("unexpected listing %+v", views)
	}
}

func TestResolveCommandAddsDependencies(t *testing.T) {
	cfg := writeLocalConfig(t)
	out, err := execute(t, "--config", cfg, "resolve", "phpmyadmin")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := "1. apache 2.4.62\n2. mariadb 11.4.2\n3. php 8.3.10\n4. phpmyadmin 5.2.1\n"
	if out != want {
		t.Errorf("resolve output:\n%s\nwant:\n%s", out, want)
	}
}

func TestResolveCommandUnknownPackage(t *testing.T) {
	if _, err := execute(t, "--config", writeLocalConfig(t), "resolve", "nginx"); err == nil {
		t.Fatal("expected error for unknown package")
	}
}

func TestValidateConfigCommand(t *testing.T) {
	cfg := writeLocalConfig(t)
	out, err := execute(t, "--config", cfg, "validate-config")
	if err != nil {
		t.Fatalf("validate-config failed: %v", err)
	}
	if !strings.Contains(out, "configuration OK") || !strings.Contains(out, "4 packages") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestValidateConfigCommandRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("download:\n  max_attempts: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", path, "validate-config"); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestBuildInstallOptions(t *testing.T) {
	prevRoot, prevPkgs, prevHTTP, prevDB := installRoot, packageNames, httpPort, dbPort
	t.Cleanup(func() {
		installRoot, packageNames, httpPort, dbPort = prevRoot, prevPkgs, prevHTTP, prevDB
	})

	cfg := config.DefaultGlobalConfig()
	installRoot = filepath.Join(t.TempDir(), "stack")
	packageNames = []string{"PHP", " xdebug "}
	httpPort = 8080
	dbPort = 0

	opts, err := buildInstallOptions(cfg)
	if err != nil {
		t.Fatalf("buildInstallOptions failed: %v", err)
	}
	if opts.InstallRoot != installRoot {
		t.Errorf("root = %s", opts.InstallRoot)
	}
	if len(opts.Select) != 2 || opts.Select[0] != catalog.PHP || opts.Select[1] != catalog.Xdebug {
		t.Errorf("select = %v", opts.Select)
	}
	if opts.Ports.HTTP != 8080 || opts.Ports.Database != cfg.Ports.Database {
		t.Errorf("ports = %+v", opts.Ports)
	}

	httpPort = 70000
	if _, err := buildInstallOptions(cfg); err == nil {
		t.Error("expected error for out of range port")
	}
	httpPort = 0
	packageNames = []string{"nginx"}
	if _, err := buildInstallOptions(cfg); err == nil {
		t.Error("expected error for unknown package")
	}
}

func TestSortPackagesNewestFirst(t *testing.T) {
	pkgs := []catalog.Package{
		{ID: catalog.PHP, Version: "8.2.9"},
		{ID: catalog.Apache, Version: "2.4.62"},
		{ID: catalog.PHP, Version: "8.10.0"},
	}
	sortPackages(pkgs)
	got := []string{pkgs[0].Version, pkgs[1].Version, pkgs[2].Version}
	if strings.Join(got, " ") != "2.4.62 8.10.0 8.2.9" {
		t.Errorf("order = %v", got)
	}
}

func TestBarEmitterRendersPackageStatus(t *testing.T) {
	var out bytes.Buffer
	em := newBarEmitter(&out)
	events := []event.Event{
		{Type: event.ProgressChanged, Percent: 10, Message: "installing Apache"},
		{Type: event.PackageCompleted, Percent: 40, Package: &event.PackageStatus{
			ID: "apache", Success: true, Elapsed: 1500 * time.Millisecond, Skipped: []string{"../evil.txt"},
		}},
		{Type: event.ErrorOccurred, Message: "Configuring xdebug failed."},
		{Type: event.InstallationCompleted, Percent: 100, Message: "installed into /stack"},
	}
	for _, ev := range events {
		if err := em.Emit(ev); err != nil {
			t.Fatalf("Emit(%s) failed: %v", ev.Type, err)
		}
	}
	for _, want := range []string{"apache", "done", "../evil.txt", "error: Configuring xdebug failed.", "installed into /stack"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "stack-installer dev") {
		t.Errorf("unexpected output %q", out)
	}
}
