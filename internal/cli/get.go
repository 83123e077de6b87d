package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/chainledger/internal/core"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	ID string
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get [hash]",
		Short: "Show one chain entry",
		Long: `Show the chain entry with the given hash, or the entry whose record
has the given id.

Exit codes:
  0 - Entry found
  1 - No such entry
  2 - Command error (bad hash, config, storage)

Examples:
  chainledger get 3b1f...e9
  chainledger get --id proof-1 --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "look up by record id instead of hash")
	return cmd
}

func runGet(ctx context.Context, opts *GetOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if (len(args) == 1) == (opts.ID != "") {
		return NewExitError(ExitCommandError, "give either a hash argument or --id")
	}

	var (
		h   core.Hash
		err error
	)
	if len(args) == 1 {
		if h, err = core.ParseHash(args[0]); err != nil {
			return WrapExitError(ExitCommandError, "invalid hash", err)
		}
	}

	e, _, err := opts.openLedger(ctx)
	if err != nil {
		return err
	}
	defer e.Shutdown(ctx)

	if opts.ID != "" {
		rec, ok := e.GetRecordByID(opts.ID)
		if !ok {
			_ = out.Error(ErrCodeNotFound, "no record with id "+opts.ID, nil)
			return NewExitError(ExitFailure, "record not found")
		}
		if h, err = core.ComputeHash(rec); err != nil {
			return WrapExitError(ExitCommandError, "hash record", err)
		}
	}

	entry, ok := e.GetEntry(h)
	if !ok {
		_ = out.Error(ErrCodeNotFound, "no entry with hash "+h.String(), nil)
		return NewExitError(ExitFailure, "entry not found")
	}

	return out.Success(entry, func(w io.Writer) {
		writeEntry(w, entry)
	})
}

func writeEntry(w io.Writer, entry core.ChainEntry) {
	rec := entry.Record
	fmt.Fprintf(w, "%s\n", entry.Hash)
	fmt.Fprintf(w, "  id:        %s\n", rec.ID)
	fmt.Fprintf(w, "  stream:    %s\n", rec.Stream)
	fmt.Fprintf(w, "  timestamp: %d\n", rec.Timestamp)
	if entry.PrevHash != nil {
		fmt.Fprintf(w, "  prev:      %s\n", entry.PrevHash)
	} else {
		fmt.Fprintf(w, "  prev:      (genesis)\n")
	}
	if payload, err := core.Canonicalize(rec.Payload); err == nil {
		fmt.Fprintf(w, "  payload:   %s\n", payload)
	}
	if rec.Meta != nil {
		if meta, err := core.Canonicalize(rec.Meta); err == nil {
			fmt.Fprintf(w, "  meta:      %s\n", meta)
		}
	}
}
