package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"

	"github.com/open-edge-platform/stack-installer/internal/utils/config"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"

	_ "github.com/open-edge-platform/stack-installer/internal/provider/apache"
	_ "github.com/open-edge-platform/stack-installer/internal/provider/composer"
	_ "github.com/open-edge-platform/stack-installer/internal/provider/controlpanel"
	_ "github.com/open-edge-platform/stack-installer/internal/provider/mariadb"
	_ "github.com/open-edge-platform/stack-installer/internal/provider/php"
	_ "github.com/open-edge-platform/stack-installer/internal/provider/phpmyadmin"
	_ "github.com/open-edge-platform/stack-installer/internal/provider/xdebug"
)

// Global flags
var (
	configFile string
	logLevel   string
	verbose    bool
)

// globalConfig is loaded by the persistent pre-run hook of every subcommand.
var globalConfig = config.DefaultGlobalConfig()

func main() {
	if err := createRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stack-installer",
		Short: "Installs a local web development stack",
		Long: `stack-installer downloads, unpacks and configures a local web stack
(web server, database server, PHP runtime and tools) into one directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().Var(&levelFlag{target: &logLevel}, "log-level", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(createInstallCommand())
	rootCmd.AddCommand(createListCommand())
	rootCmd.AddCommand(createResolveCommand())
	rootCmd.AddCommand(createValidateConfigCommand())
	rootCmd.AddCommand(createVersionCommand())

	attachLoggingHooks(rootCmd)
	return rootCmd
}

// attachLoggingHooks installs the config and logger setup on every
// subcommand.
func attachLoggingHooks(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
			return initGlobals(cmd)
		}
	}
}

func initGlobals(cmd *cobra.Command) error {
	cfg, err := config.LoadGlobalConfig(configFile)
	if err != nil {
		return err
	}
	globalConfig = cfg

	level := resolveRequestedLogLevel(cmd)
	if level == "" {
		level = cfg.Logging.Level
	}
	_, err = logger.Setup(logger.Options{
		Level:      level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	return err
}

// resolveRequestedLogLevel returns the level asked for on the command line,
// or "" when the config file decides.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd == nil {
		return ""
	}
	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Changed && f.Value.String() == "true" {
		return "debug"
	}
	return ""
}

// levelFlag rejects unknown log levels while the command line is parsed.
type levelFlag struct {
	target *string
}

var _ pflag.Value = (*levelFlag)(nil)

func (l *levelFlag) String() string {
	if l.target == nil {
		return ""
	}
	return *l.target
}

func (l *levelFlag) Set(s string) error {
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		return err
	}
	*l.target = level.String()
	return nil
}

func (l *levelFlag) Type() string { return "level" }
