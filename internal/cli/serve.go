package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Long: `Load the ledger and serve it over HTTP until interrupted.

Routes live under /v1; /healthz and /metrics sit at the root. Writes take
the requester OID from the X-Requester-OID header.

Examples:
  chainledger serve --config ./configs/chainledger.yaml
  chainledger serve --addr 127.0.0.1:9090 -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default: server.addr from config)")
	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, f, err := opts.openLedger(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Shutdown(context.Background()); err != nil {
			opts.Logger.Error("ledger shutdown failed", zap.Error(err))
		}
	}()

	addr := f.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	opts.Logger.Debug("ledger loaded", zap.String("ledger", e.ID()), zap.Int("entries", e.Len()))
	srv := server.New(e, server.WithLogger(opts.Logger))
	if err := srv.Run(ctx, addr); err != nil {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	return nil
}
