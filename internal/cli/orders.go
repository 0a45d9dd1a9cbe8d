package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lastclick/internal/config"
	"github.com/roach88/lastclick/internal/model"
	"github.com/roach88/lastclick/internal/store"
)

// GetOrdersOptions holds flags for the get-orders command.
type GetOrdersOptions struct {
	*RootOptions
	Database string
	Page     int
	PageSize int
}

// OrdersResult is the JSON payload of get-orders.
type OrdersResult struct {
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Orders   []model.Order `json:"orders"`
}

// NewGetOrdersCommand creates the get-orders command.
func NewGetOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOrdersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get-orders",
		Short: "List stored orders one page at a time",
		Long: `List stored orders ordered by event time, oldest first.

Pages are zero-based. A page past the end is empty.

Examples:
  lastclick get-orders --db ./lastclick.db
  lastclick get-orders --db ./lastclick.db --page 2 --page-size 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGetOrders(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "zero-based page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 50, "orders per page")

	return cmd
}

func runGetOrders(opts *GetOrdersOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	cfg, err := resolveConfig(opts.RootOptions, config.Config{Database: opts.Database})
	if err != nil {
		return fail(out, err)
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

	orders, err := st.PageOrders(cmd.Context(), opts.Page, opts.PageSize)
	if err != nil {
		if errors.Is(err, store.ErrInvalidPage) {
			return fail(out, WrapExitError(ExitCommandError, "invalid page", err))
		}
		return fail(out, WrapExitError(ExitFailure, "failed to read orders", err))
	}
	out.VerboseLog("page %d: %d orders", opts.Page, len(orders))

	if out.IsJSON() {
		return out.Success(OrdersResult{Page: opts.Page, PageSize: opts.PageSize, Orders: orders})
	}
	writeOrders(out.Writer, orders)
	return nil
}

// writeOrders prints orders as an aligned table.
func writeOrders(w io.Writer, orders []model.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders on this page.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tHOST\tVISITOR\tVALUE\tSOURCE\tMEDIUM\tCAMPAIGN")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID,
			o.EventTimestamp.Format(time.RFC3339),
			o.Hostname,
			o.UserPseudoID,
			formatValue(o.Currency, o.Value),
			orDash(o.Source),
			orDash(o.Medium),
			orDash(o.Campaign),
		)
	}
	tw.Flush()
}

func formatValue(currency *string, value *float64) string {
	if value == nil {
		return "-"
	}
	if currency == nil {
		return fmt.Sprintf("%.2f", *value)
	}
	return fmt.Sprintf("%.2f %s", *value, *currency)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
