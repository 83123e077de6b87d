package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewModulesCommand creates the modules command.
func NewModulesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the ledger's modules and their state",
		Long: `Load the ledger and list its modules in registration order with
version and lifecycle state.

Examples:
  chainledger modules
  chainledger modules --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModules(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runModules(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	e, _, err := opts.openLedger(ctx)
	if err != nil {
		return err
	}
	defer e.Shutdown(ctx)

	meta := e.ModuleMetadata()
	return out.Success(meta, func(w io.Writer) {
		if len(meta) == 0 {
			fmt.Fprintln(w, "no modules")
			return
		}
		for _, m := range meta {
			fmt.Fprintf(w, "%-16s %-10s %s\n", m.ID, m.Version, m.State)
		}
	})
}
