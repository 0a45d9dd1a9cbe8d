package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lastclick/internal/config"
	"github.com/roach88/lastclick/internal/httpapi"
	"github.com/roach88/lastclick/internal/metrics"
	"github.com/roach88/lastclick/internal/store"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Listen   string

	// Ready, if set, receives the bound address once the listener is open
	// (for testing).
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API over HTTP",
		Long: `Serve stored orders over HTTP until interrupted.

Routes:
  GET /orders?page=N&page_size=M   zero-based order listing
  GET /healthz                     store reachability
  GET /metrics                     Prometheus metrics

Example:
  lastclick serve --db ./lastclick.db --listen :8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default "+config.DefaultListen+")")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	cfg, err := resolveConfig(opts.RootOptions, config.Config{
		Database: opts.Database,
		Listen:   opts.Listen,
	})
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

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "failed to listen", err))
	}

	reg := metrics.NewRegistry()
	reg.RegisterRuntime()
	srv := &http.Server{
		Handler:           httpapi.NewRouter(st, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	addr := ln.Addr().String()
	slog.Info("read API listening", "addr", addr, "db", cfg.Database)
	if !out.IsJSON() {
		fmt.Fprintf(out.Writer, "Serving on http://%s\n", addr)
	}
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fail(out, WrapExitError(ExitFailure, "server error", err))
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down read API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fail(out, WrapExitError(ExitFailure, "shutdown failed", err))
	}
	slog.Info("read API stopped gracefully")
	return nil
}
