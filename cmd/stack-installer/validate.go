package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/utils/config"
	"github.com/open-edge-platform/stack-installer/internal/utils/file"
)

func createValidateConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config [MANIFEST]",
		Short: "Validates the configuration file and, optionally, a package manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE:  executeValidateConfig,
	}
}

func executeValidateConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// The pre-run hook already rejected an invalid file; defaults are
	// validated here as well.
	if err := globalConfig.Validate(); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	source := "built-in defaults"
	if configFile != "" {
		source = configFile
	}
	fmt.Fprintf(out, "configuration OK (%s)\n", source)

	manifest := ""
	if len(args) == 1 {
		manifest = args[0]
	} else if p := config.NewConfigHelpers(globalConfig).LocalCatalogPath(); p != "" && file.Exists(p) {
		manifest = p
	}
	if manifest == "" {
		return nil
	}
	n, err := validateManifestFile(manifest)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "manifest OK (%s, %d packages)\n", manifest, n)
	return nil
}

func validateManifestFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading manifest: %w", err)
	}
	entries, err := catalog.ParseManifest(data)
	if err != nil {
		return 0, fmt.Errorf("manifest %s: %w", path, err)
	}
	pkgs, err := catalog.BuildCatalog(entries)
	if err != nil {
		return 0, fmt.Errorf("manifest %s: %w", path, err)
	}
	return len(pkgs), nil
}
