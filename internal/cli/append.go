package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/chainledger/internal/core"
	"github.com/roach88/chainledger/internal/engine"
)

// AppendOptions holds flags for the append command.
type AppendOptions struct {
	*RootOptions
	ID        string
	Stream    string
	Timestamp uint64
	Payload   string
	Meta      string

	ids engine.IDGenerator
	now func() time.Time
}

// AppendResult is the output of append.
type AppendResult struct {
	ID      string `json:"id" yaml:"id"`
	Hash    string `json:"hash" yaml:"hash"`
	Entries int    `json:"entries" yaml:"entries"`
	Warning string `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppendOptions{RootOptions: rootOpts, ids: engine.UUIDv7Generator{}, now: time.Now}

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append one record",
		Long: `Append one record to the ledger and print its hash.

The record id defaults to a UUIDv7 and the timestamp to the current time
in unix milliseconds.

Exit codes:
  0 - Record appended
  1 - Record rejected (validation, module hook, access control)
  2 - Command error (bad flags, config, storage)

Examples:
  chainledger append --requester oid:onoal:org:acme --stream proofs \
    --payload '{"subject_oid":"oid:onoal:user:alice","issuer_oid":"oid:onoal:org:acme"}'
  chainledger append --requester oid:onoal:user:bob --stream notes --id n-1 --payload '["x"]' --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "record id (default: generated UUIDv7)")
	cmd.Flags().StringVar(&opts.Stream, "stream", "", "record stream (required)")
	cmd.Flags().Uint64Var(&opts.Timestamp, "timestamp", 0, "record timestamp in unix ms (default: now)")
	cmd.Flags().StringVar(&opts.Payload, "payload", "{}", "JSON object or array")
	cmd.Flags().StringVar(&opts.Meta, "meta", "", "optional JSON metadata")
	_ = cmd.MarkFlagRequired("stream")

	return cmd
}

func (o *AppendOptions) record() (core.Record, error) {
	doc := map[string]any{
		"id":        o.ID,
		"stream":    o.Stream,
		"timestamp": o.Timestamp,
		"payload":   json.RawMessage(o.Payload),
	}
	if o.Meta != "" {
		doc["meta"] = json.RawMessage(o.Meta)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return core.Record{}, fmt.Errorf("payload and meta must be valid JSON: %w", err)
	}
	rec, err := core.DecodeRecord(raw)
	if err != nil {
		return core.Record{}, err
	}
	fillRecord(&rec, o.ids, core.NowMillis(o.now()))
	return rec, nil
}

func runAppend(ctx context.Context, opts *AppendOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	rec, err := opts.record()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid record", err)
	}

	e, _, err := opts.openLedger(ctx)
	if err != nil {
		return err
	}
	defer e.Shutdown(ctx)

	h, err := e.AppendRecord(ctx, rec, opts.requestContext())
	if err != nil && h.IsZero() {
		_ = out.Error(ErrCodeRejected, err.Error(), map[string]string{"kind": string(engine.KindOf(err))})
		return ledgerExit("append rejected", err)
	}

	result := AppendResult{ID: rec.ID, Hash: h.String(), Entries: e.Len()}
	if err != nil {
		result.Warning = err.Error()
	}
	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ appended %s\n", result.ID)
		fmt.Fprintf(w, "  hash: %s\n", result.Hash)
		fmt.Fprintf(w, "  entries: %d\n", result.Entries)
		if result.Warning != "" {
			fmt.Fprintf(w, "  warning: %s\n", result.Warning)
		}
	})
}

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions

	ids engine.IDGenerator
	now func() time.Time
}

// BatchResult is the output of batch.
type BatchResult struct {
	Hashes  []string `json:"hashes" yaml:"hashes"`
	Entries int      `json:"entries" yaml:"entries"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts, ids: engine.UUIDv7Generator{}, now: time.Now}

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Append records atomically from a file",
		Long: `Append every record in a file, or none of them.

The file holds a JSON array of records or an object with a "records"
array. Files ending in .yaml or .yml are read as YAML. Use - for stdin.

Exit codes:
  0 - All records appended
  1 - Batch rejected, nothing appended
  2 - Command error (unreadable file, config, storage)

Examples:
  chainledger batch ./proofs.json --requester oid:onoal:org:acme
  cat proofs.yaml | chainledger batch - --requester oid:onoal:org:acme`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), opts, args[0], cmd)
		},
	}
	return cmd
}

func runBatch(ctx context.Context, opts *BatchOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read batch", err)
	}
	recs, err := decodeRecords(path, data)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid batch", err)
	}
	now := core.NowMillis(opts.now())
	for i := range recs {
		fillRecord(&recs[i], opts.ids, now)
	}

	e, _, err := opts.openLedger(ctx)
	if err != nil {
		return err
	}
	defer e.Shutdown(ctx)

	hashes, err := e.AppendBatch(ctx, recs, opts.requestContext())
	if err != nil {
		_ = out.Error(ErrCodeRejected, err.Error(), map[string]string{"kind": string(engine.KindOf(err))})
		return ledgerExit("batch rejected", err)
	}

	result := BatchResult{Hashes: make([]string, len(hashes)), Entries: e.Len()}
	for i, h := range hashes {
		result.Hashes[i] = h.String()
	}
	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ appended %d records\n", len(result.Hashes))
		for i, h := range result.Hashes {
			fmt.Fprintf(w, "  %s  %s\n", h, recs[i].ID)
		}
		fmt.Fprintf(w, "  entries: %d\n", result.Entries)
	})
}
