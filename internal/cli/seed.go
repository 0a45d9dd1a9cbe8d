package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/lastclick/internal/config"
	"github.com/roach88/lastclick/internal/source"
	"github.com/roach88/lastclick/internal/store"
)

// SeedEventsOptions holds flags for the seed-events command.
type SeedEventsOptions struct {
	*RootOptions
	Database string
}

// SeedResult summarizes a seed-events run.
type SeedResult struct {
	Read     int `json:"read"`
	Rejected int `json:"rejected"`
	Stored   int `json:"stored"`
}

// NewSeedEventsCommand creates the seed-events command.
func NewSeedEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedEventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed-events <events.jsonl>",
		Short: "Append raw tracking events to the store",
		Long: `Append raw tracking events from a JSON Lines file to the store.

Lines that fail validation are skipped and counted. Events without a visitor
id are read but not stored.

Example:
  lastclick seed-events --db ./lastclick.db ./events.jsonl`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeedEvents(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runSeedEvents(opts *SeedEventsOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	cfg, err := resolveConfig(opts.RootOptions, config.Config{Database: opts.Database})
	if err != nil {
		return fail(out, err)
	}

	res, err := source.ReadEventsFile(path)
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "failed to read events", err))
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	stored, err := st.InsertEvents(cmd.Context(), res.Records)
	if err != nil {
		return fail(out, WrapExitError(ExitFailure, "failed to store events", err))
	}

	result := SeedResult{Read: len(res.Records) + res.Rejected, Rejected: res.Rejected, Stored: stored}
	slog.Info("events seeded", "read", result.Read, "rejected", result.Rejected, "stored", result.Stored)

	if out.IsJSON() {
		return out.Success(result)
	}
	fmt.Fprintf(out.Writer, "Read %d events: %d stored, %d rejected\n", result.Read, result.Stored, result.Rejected)
	return nil
}
