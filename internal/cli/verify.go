package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/chainledger/internal/core"
	"github.com/roach88/chainledger/internal/engine"
)

// VerifyResult is the output of verify.
type VerifyResult struct {
	Valid        bool                     `json:"valid" yaml:"valid"`
	Entries      int                      `json:"entries" yaml:"entries"`
	Storage      bool                     `json:"storage" yaml:"storage"`
	StorageValid bool                     `json:"storage_valid,omitempty" yaml:"storage_valid,omitempty"`
	Tip          string                   `json:"tip,omitempty" yaml:"tip,omitempty"`
	Error        string                   `json:"error,omitempty" yaml:"error,omitempty"`
	Verification *core.VerificationResult `json:"verification,omitempty" yaml:"verification,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the chain and its storage",
		Long: `Load the ledger, re-verify every hash link in memory and, when
storage is configured, re-read and verify the persisted chain.

A persisted chain that fails verification while loading is reported the
same way as a failed in-memory check.

Exit codes:
  0 - Chain is valid
  1 - Chain integrity violation
  2 - Command error (config, storage unavailable)

Examples:
  chainledger verify
  chainledger verify --config ./configs/chainledger.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), rootOpts, cmd)
		},
	}
	return cmd
}

func runVerify(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	e, _, err := opts.openLedger(ctx)
	if err != nil {
		if engine.IsKind(err, engine.KindChainIntegrity) {
			return reportInvalid(out, VerifyResult{Storage: true}, err)
		}
		return err
	}
	defer e.Shutdown(ctx)

	result := VerifyResult{Entries: e.Len(), Storage: e.HasStorage()}
	if tip := e.LatestHash(); tip != nil {
		result.Tip = tip.String()
	}

	if err := e.Verify(); err != nil {
		return reportInvalid(out, result, err)
	}
	if result.Storage {
		ok, err := e.VerifyStorage(ctx)
		if err != nil && !engine.IsKind(err, engine.KindChainIntegrity) {
			return ledgerExit("storage verification failed", err)
		}
		if !ok {
			return reportInvalid(out, result, err)
		}
		result.StorageValid = true
	}
	result.Valid = true

	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ chain valid (%d entries)\n", result.Entries)
		if result.Tip != "" {
			fmt.Fprintf(w, "  tip: %s\n", result.Tip)
		}
		if result.Storage {
			fmt.Fprintln(w, "  storage: valid")
		}
	})
}

func reportInvalid(out *OutputFormatter, result VerifyResult, err error) error {
	result.Valid = false
	result.Error = err.Error()
	var ee *engine.Error
	if errors.As(err, &ee) {
		result.Verification = ee.Verification
	}

	if out.Structured() {
		if encErr := out.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeIntegrity, Message: result.Error},
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(out.Writer, "✗ chain invalid: %s\n", result.Error)
		if result.Verification != nil {
			for _, ce := range result.Verification.Errors {
				fmt.Fprintf(out.Writer, "  - %s\n", ce.Error())
			}
		}
	}
	return WrapExitError(ExitFailure, "chain verification failed", err)
}
