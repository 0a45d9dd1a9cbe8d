package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/lastclick/internal/config"
	"github.com/roach88/lastclick/internal/ingest"
	"github.com/roach88/lastclick/internal/metrics"
	"github.com/roach88/lastclick/internal/source"
	"github.com/roach88/lastclick/internal/store"
)

// PushJob is the Pushgateway job name for import runs.
const PushJob = "lastclick_import"

// ImportOptions holds flags for the import-orders command.
type ImportOptions struct {
	*RootOptions
	Database    string
	Input       string
	PushGateway string

	// IDGenerator allows overriding the surface id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator ingest.IDGenerator
}

// NewImportCommand creates the import-orders command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return newImportCommand(&ImportOptions{RootOptions: rootOpts})
}

func newImportCommand(opts *ImportOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-orders",
		Short: "Run one ingestion pass",
		Long: `Run one ingestion pass into the order store.

By default purchases are read from the raw events in the store, each one
attributed to the visitor's last click on the same host. With --input,
already attributed purchases are read from a JSON Lines file instead.

Exit codes:
  0 - Run committed (including a run with nothing new)
  1 - Run failed; nothing was written and the run can be retried
  2 - Command error (missing database location, unreadable input, etc.)

Examples:
  lastclick import-orders --db ./lastclick.db
  lastclick import-orders --db ./lastclick.db --input orders.jsonl --format json
  lastclick import-orders --config lastclick.yaml --pushgateway http://localhost:9091`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Input, "input", "", "read fetched orders from a JSON Lines file")
	cmd.Flags().StringVar(&opts.PushGateway, "pushgateway", "", "Prometheus Pushgateway URL for run metrics")

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	cfg, err := resolveConfig(opts.RootOptions, config.Config{
		Database:    opts.Database,
		PushGateway: opts.PushGateway,
	})
	if err != nil {
		return fail(out, err)
	}

	slog.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx, stop := signalContext(cmd)
	defer stop()

	reg := metrics.NewRegistry()
	pipelineOpts := []ingest.Option{ingest.WithMetrics(reg)}
	if opts.IDGenerator != nil {
		pipelineOpts = append(pipelineOpts, ingest.WithIDGenerator(opts.IDGenerator))
	}
	pipeline := ingest.New(st, pipelineOpts...)

	var report ingest.Report
	if opts.Input != "" {
		res, readErr := source.ReadOrdersFile(opts.Input)
		if readErr != nil {
			return fail(out, WrapExitError(ExitCommandError, "failed to read input", readErr))
		}
		report, err = pipeline.Run(ctx, res.Records)
		report.Fetched += res.Rejected
		report.Rejected += res.Rejected
		reg.Fetched.Add(float64(res.Rejected))
		reg.Rejected.Add(float64(res.Rejected))
	} else {
		report, err = pipeline.RunFrom(ctx, st)
	}

	if cfg.PushGateway != "" {
		if pushErr := reg.Push(cfg.PushGateway, PushJob); pushErr != nil {
			slog.Warn("failed to push run metrics", "url", cfg.PushGateway, "error", pushErr)
		} else {
			slog.Debug("run metrics pushed", "url", cfg.PushGateway)
		}
	}

	if err != nil {
		return failWith(out, WrapExitError(ExitFailure, "import failed", err), report)
	}

	if out.IsJSON() {
		return out.Success(report)
	}
	writeReport(out.Writer, report)
	return nil
}

// writeReport prints a run report for humans.
func writeReport(w io.Writer, r ingest.Report) {
	fmt.Fprintf(w, "Fetched:        %d (rejected %d)\n", r.Fetched, r.Rejected)
	fmt.Fprintf(w, "Orders:         %d new, %d duplicate\n", r.Orders, r.Duplicates)
	fmt.Fprintf(w, "Products:       %d new, %d reused\n", r.Products, r.ReusedProducts)
	fmt.Fprintf(w, "Order products: %d new\n", r.OrderProducts)
	if r.Orders == 0 {
		fmt.Fprintln(w, "No new orders.")
	}
}

// signalContext returns the command context cancelled on SIGINT or SIGTERM.
// Use command's context if available (for testing), otherwise create one.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	return signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
}

// fail reports err through out and returns it marked as reported.
func fail(out *OutputFormatter, err error) error {
	return failWith(out, err, nil)
}

func failWith(out *OutputFormatter, err error, details interface{}) error {
	if writeErr := out.Error(errorCode(err), err.Error(), details); writeErr != nil {
		slog.Warn("failed to write error response", "error", writeErr)
		return err
	}
	return reportedError{err}
}
