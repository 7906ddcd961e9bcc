package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/roach88/cbind/internal/config"
	"github.com/roach88/cbind/internal/service"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	MetricsAddr string

	// Transport overrides stdio (for testing).
	Transport mcpsdk.Transport

	// Ready, if set, receives the diagnostics address once it is listening
	// (for testing).
	Ready func(metricsAddr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the indexing session protocol over stdio",
		Long: `Serve the indexing session protocol as MCP tools over stdin/stdout.

A client sets the configuration, indexes headers into a session, filters
and resolves, adds mappings and writes the bindings. The server stops when
the client disconnects, calls quit, or on SIGINT/SIGTERM; open sessions are
aborted without writing.

With --config the file is loaded as the initial configuration. With
--metrics-addr /healthz, /readyz and /metrics are served on that address.

Examples:
  cbind serve
  cbind serve -c cbind.yaml --metrics-addr 127.0.0.1:9464`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "address for the diagnostics HTTP server (disabled when empty)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := opts.logger()
	svc := service.New(service.WithLogger(logger))

	if opts.ConfigPath != "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		if err := svc.SetConfig(*cfg); err != nil {
			return WrapExitError(ExitCommandError, "invalid config", err)
		}
		logger.Info("config loaded", "path", opts.ConfigPath, "module", cfg.Module)
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.MetricsAddr != "" {
		diag, err := service.NewDiagnosticsServer(opts.MetricsAddr, svc)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start diagnostics server", err)
		}
		defer func() {
			if err := diag.Close(); err != nil {
				logger.Error("error closing diagnostics server", "error", err)
			}
		}()
		logger.Info("diagnostics listening", "addr", diag.Addr())
		if opts.Ready != nil {
			opts.Ready(diag.Addr())
		}
	}

	srv := service.NewServer(svc, logger)
	logger.Info("server starting", "tools", len(srv.ListToolNames()))

	var err error
	if opts.Transport != nil {
		err = srv.RunWithTransport(ctx, opts.Transport)
	} else {
		err = srv.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped")
	return nil
}
