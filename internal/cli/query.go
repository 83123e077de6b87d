package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/chainledger/internal/core"
	"github.com/roach88/chainledger/internal/engine"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Stream  string
	ID      string
	From    uint64
	To      uint64
	Offset  int
	Limit   int
	Filters map[string]string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List records matching filters",
		Long: `List records in chain order, filtered by stream, id and timestamp
range, then by module filters, then paginated.

Module filters are passed to every started module as key=value pairs;
the proof module understands subject_oid and issuer_oid.

Exit codes:
  0 - Query ran (possibly with no matches)
  2 - Command error (bad flags, config, storage)

Examples:
  chainledger query --stream proofs
  chainledger query --stream proofs --filter subject_oid=oid:onoal:user:alice
  chainledger query --from 1700000000000 --limit 10 --offset 20 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Stream, "stream", "", "only records in this stream")
	cmd.Flags().StringVar(&opts.ID, "id", "", "only the record with this id")
	cmd.Flags().Uint64Var(&opts.From, "from", 0, "earliest timestamp in unix ms, inclusive")
	cmd.Flags().Uint64Var(&opts.To, "to", 0, "latest timestamp in unix ms, inclusive")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "skip this many matches")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "return at most this many matches (0 = all)")
	cmd.Flags().StringToStringVar(&opts.Filters, "filter", nil, "module filter key=value (repeatable)")

	return cmd
}

func (o *QueryOptions) filters(cmd *cobra.Command) (engine.QueryFilters, error) {
	if o.Offset < 0 || o.Limit < 0 {
		return engine.QueryFilters{}, fmt.Errorf("offset and limit must be non-negative")
	}
	f := engine.QueryFilters{
		Stream: o.Stream,
		ID:     o.ID,
		Offset: o.Offset,
		Limit:  o.Limit,
	}
	if cmd.Flags().Changed("from") {
		from := o.From
		f.TimestampFrom = &from
	}
	if cmd.Flags().Changed("to") {
		to := o.To
		f.TimestampTo = &to
	}
	if len(o.Filters) > 0 {
		f.ModuleFilters = make(map[string]any, len(o.Filters))
		for k, v := range o.Filters {
			f.ModuleFilters[k] = v
		}
	}
	return f, nil
}

func runQuery(ctx context.Context, opts *QueryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	f, err := opts.filters(cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid query", err)
	}

	e, _, err := opts.openLedger(ctx)
	if err != nil {
		return err
	}
	defer e.Shutdown(ctx)

	res := e.Query(f)
	return out.Success(res, func(w io.Writer) {
		writeRecords(w, res.Records)
		more := ""
		if res.HasMore {
			more = ", more available"
		}
		fmt.Fprintf(w, "%d of %d matches%s\n", len(res.Records), res.Total, more)
	})
}

func writeRecords(w io.Writer, recs []core.Record) {
	for _, rec := range recs {
		payload, err := core.Canonicalize(rec.Payload)
		if err != nil {
			payload = []byte("?")
		}
		fmt.Fprintf(w, "%d  %-12s %s  %s\n", rec.Timestamp, rec.Stream, rec.ID, payload)
	}
}
