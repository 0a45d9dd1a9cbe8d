package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/lastclick/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Getenv overrides the environment lookup (for testing).
	// If nil, config.Load reads the process environment.
	Getenv func(string) string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the lastclick CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lastclick",
		Short: "lastclick - order ingestion with last-click attribution",
		Long: `Ingest purchases into a deduplicated order store.

Each import run maps fetched purchases to orders, products and order lines,
drops orders that are already stored, reuses stored products, and writes
everything new in one transaction. Re-running an import is always safe.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to YAML config file")

	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewGetOrdersCommand(opts))
	cmd.AddCommand(NewSeedEventsCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// setupLogging installs the default slog logger: text on w, Debug when
// verbose.
func setupLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// resolveConfig merges flags with the config file and environment. A missing
// database location is a command error.
func resolveConfig(opts *RootOptions, flags config.Config) (config.Config, error) {
	cfg, err := config.Load(config.Options{
		File:   opts.ConfigFile,
		Flags:  flags,
		Getenv: opts.Getenv,
	})
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "missing database location", err)
	}
	return cfg, nil
}
