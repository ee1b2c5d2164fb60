package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/event"
	"github.com/open-edge-platform/stack-installer/internal/installer"
	"github.com/open-edge-platform/stack-installer/internal/installerr"
	"github.com/open-edge-platform/stack-installer/internal/provider"
	"github.com/open-edge-platform/stack-installer/internal/utils/config"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

// Install command flags
var (
	installRoot  string
	packageNames []string
	httpPort     int
	httpsPort    int
	dbPort       int
	jsonOutput   bool
	writeReport  bool
)

var defaultPackages = []string{"apache", "mariadb", "php", "phpmyadmin"}

func createInstallCommand() *cobra.Command {
	installCmd := &cobra.Command{
		Use:   "install [flags]",
		Short: "Installs the selected packages into an empty directory",
		Long: `Install resolves the dependencies of the selected packages, downloads
and unpacks them into the install root and configures them for the chosen
ports. The install root must be empty or not exist yet.`,
		Args: cobra.NoArgs,
		RunE: executeInstall,
	}

	installCmd.Flags().StringVarP(&installRoot, "root", "r", "", "Install directory (default from config)")
	installCmd.Flags().StringSliceVarP(&packageNames, "packages", "p", defaultPackages,
		"Packages to install; dependencies are added automatically")
	installCmd.Flags().IntVar(&httpPort, "http-port", 0, "HTTP port (default from config)")
	installCmd.Flags().IntVar(&httpsPort, "https-port", 0, "HTTPS port (default from config)")
	installCmd.Flags().IntVar(&dbPort, "db-port", 0, "Database port (default from config)")
	installCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit newline-delimited JSON events instead of a progress bar")
	installCmd.Flags().BoolVar(&writeReport, "report", false, "Write the list of downloaded URLs to the report directory")
	return installCmd
}

func executeInstall(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	opts, err := buildInstallOptions(globalConfig)
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(globalConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var emitter event.Emitter
	if jsonOutput {
		emitter = event.NewJSONEmitter(cmd.OutOrStdout())
	} else {
		emitter = newBarEmitter(cmd.OutOrStdout())
	}

	events := make(chan event.Event, 16)
	drained := make(chan error, 1)
	go func() { drained <- event.Drain(events, emitter) }()

	runErr := orch.Run(ctx, opts, events)
	if err := <-drained; err != nil {
		log.Warnf("writing progress output failed: %v", err)
	}

	if writeReport {
		helpers := config.NewConfigHelpers(globalConfig)
		if dir, err := helpers.CreateReportDir(); err != nil {
			log.Warnf("cannot create report directory: %v", err)
		} else if path, err := logger.GlobalFetchReport.WriteToFile(dir); err != nil {
			log.Warnf("writing fetch report failed: %v", err)
		} else {
			log.Infof("fetch report written to %s", path)
		}
	}

	if runErr != nil {
		if installerr.IsCancelled(runErr) {
			return errors.New("installation cancelled")
		}
		return errors.New(installerr.Summary(runErr))
	}
	return nil
}

// buildInstallOptions merges command line flags over the configuration.
func buildInstallOptions(cfg *config.GlobalConfig) (installer.InstallOptions, error) {
	root := installRoot
	if root == "" {
		var err error
		root, err = config.NewConfigHelpers(cfg).InstallRoot()
		if err != nil {
			return installer.InstallOptions{}, fmt.Errorf("resolving install root: %w", err)
		}
	}

	ids, err := parsePackageIDs(packageNames)
	if err != nil {
		return installer.InstallOptions{}, err
	}

	ports := provider.Ports{
		HTTP:     pick(httpPort, cfg.Ports.HTTP),
		HTTPS:    pick(httpsPort, cfg.Ports.HTTPS),
		Database: pick(dbPort, cfg.Ports.Database),
	}
	for name, p := range map[string]int{"http-port": ports.HTTP, "https-port": ports.HTTPS, "db-port": ports.Database} {
		if p < 1 || p > 65535 {
			return installer.InstallOptions{}, fmt.Errorf("--%s must be between 1 and 65535, got %d", name, p)
		}
	}

	return installer.InstallOptions{InstallRoot: root, Select: ids, Ports: ports}, nil
}

func parsePackageIDs(names []string) ([]catalog.PackageID, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no packages selected")
	}
	ids := make([]catalog.PackageID, 0, len(names))
	for _, n := range names {
		id, err := catalog.ParsePackageID(n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func pick(flag, fromConfig int) int {
	if flag != 0 {
		return flag
	}
	return fromConfig
}
