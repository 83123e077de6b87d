package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/chainledger/internal/acl"
	"github.com/roach88/chainledger/internal/engine"
)

// ACLOptions holds flags shared by the acl subcommands.
type ACLOptions struct {
	*RootOptions
	Subject   string
	Resource  string
	Action    string
	Expires   time.Duration
	GrantedBy string

	now func() time.Time
}

// NewACLCommand creates the acl command and its subcommands.
func NewACLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ACLOptions{RootOptions: rootOpts, now: time.Now}

	cmd := &cobra.Command{
		Use:   "acl",
		Short: "Manage access grants",
		Long: `Grant, revoke, list and check access grants on the configured ACL
backend. The resource defaults to the ledger itself (ledger:<id>) and the
action to write, which is what appends are checked against.

Exit codes:
  0 - Success
  1 - Grant rejected, or check denied
  2 - Command error (ACL disabled, config, backend unavailable)`,
	}

	grant := &cobra.Command{
		Use:   "grant",
		Short: "Grant an action on a resource",
		Example: `  chainledger acl grant --subject oid:onoal:user:alice --requester oid:onoal:org:acme
  chainledger acl grant --subject oid:onoal:user:bob --expires 24h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrant(cmd.Context(), opts, cmd)
		},
	}
	grant.Flags().DurationVar(&opts.Expires, "expires", 0, "grant lifetime (default: never expires)")
	grant.Flags().StringVar(&opts.GrantedBy, "granted-by", "", "granting OID (default: --requester)")
	opts.bindKey(grant)

	revoke := &cobra.Command{
		Use:     "revoke",
		Short:   "Revoke a grant",
		Example: `  chainledger acl revoke --subject oid:onoal:user:alice`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRevoke(cmd.Context(), opts, cmd)
		},
	}
	opts.bindKey(revoke)

	list := &cobra.Command{
		Use:     "list",
		Short:   "List the unexpired grants of a subject",
		Example: `  chainledger acl list --subject oid:onoal:user:alice --format json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListGrants(cmd.Context(), opts, cmd)
		},
	}
	opts.bindKey(list)

	check := &cobra.Command{
		Use:     "check",
		Short:   "Check whether a subject may perform an action",
		Example: `  chainledger acl check --subject oid:onoal:user:alice --action write`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts, cmd)
		},
	}
	opts.bindKey(check)

	cmd.AddCommand(grant, revoke, list, check)
	return cmd
}

// bindKey registers the grant key flags on c.
func (o *ACLOptions) bindKey(c *cobra.Command) {
	c.Flags().StringVar(&o.Subject, "subject", "", "subject OID (required)")
	c.Flags().StringVar(&o.Resource, "resource", "", "resource OID (default: ledger:<id>)")
	c.Flags().StringVar(&o.Action, "action", engine.WriteAction, "action")
	_ = c.MarkFlagRequired("subject")
}

func (o *ACLOptions) resource(e *engine.Engine) string {
	if o.Resource != "" {
		return o.Resource
	}
	return e.Config().ResourceOID()
}

func runGrant(ctx context.Context, opts *ACLOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	e, _, err := opts.openLedger(ctx)
	if err != nil {
		return err
	}
	defer e.Shutdown(ctx)

	now := opts.now()
	g := acl.Grant{
		SubjectOID:  opts.Subject,
		ResourceOID: opts.resource(e),
		Action:      opts.Action,
		GrantedBy:   opts.GrantedBy,
		GrantedAt:   now.Unix(),
	}
	if g.GrantedBy == "" {
		g.GrantedBy = opts.Requester
	}
	if opts.Expires > 0 {
		g.ExpiresAt = acl.ExpiresIn(now, opts.Expires)
	}

	if err := e.Grant(ctx, g); err != nil {
		_ = out.Error(ErrCodeRejected, err.Error(), nil)
		return ledgerExit("grant failed", err)
	}
	return out.Success(g, func(w io.Writer) {
		fmt.Fprintf(w, "✓ granted %s %s on %s\n", g.SubjectOID, g.Action, g.ResourceOID)
		if g.ExpiresAt != nil {
			fmt.Fprintf(w, "  expires: %s\n", time.Unix(*g.ExpiresAt, 0).UTC().Format(time.RFC3339))
		}
	})
}

func runRevoke(ctx context.Context, opts *ACLOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	e, _, err := opts.openLedger(ctx)
	if err != nil {
		return err
	}
	defer e.Shutdown(ctx)

	resource := opts.resource(e)
	if err := e.Revoke(ctx, opts.Subject, resource, opts.Action); err != nil {
		_ = out.Error(ErrCodeRejected, err.Error(), nil)
		return ledgerExit("revoke failed", err)
	}
	data := map[string]string{"subject_oid": opts.Subject, "resource_oid": resource, "action": opts.Action}
	return out.Success(data, func(w io.Writer) {
		fmt.Fprintf(w, "✓ revoked %s %s on %s\n", opts.Subject, opts.Action, resource)
	})
}

func runListGrants(ctx context.Context, opts *ACLOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	e, _, err := opts.openLedger(ctx)
	if err != nil {
		return err
	}
	defer e.Shutdown(ctx)

	grants, err := e.ListGrants(ctx, opts.Subject)
	if err != nil {
		_ = out.Error(ErrCodeRejected, err.Error(), nil)
		return ledgerExit("list grants failed", err)
	}
	if grants == nil {
		grants = []acl.Grant{}
	}
	return out.Success(grants, func(w io.Writer) {
		if len(grants) == 0 {
			fmt.Fprintf(w, "no grants for %s\n", opts.Subject)
			return
		}
		for _, g := range grants {
			expires := "never"
			if g.ExpiresAt != nil {
				expires = time.Unix(*g.ExpiresAt, 0).UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s  %s  expires %s  by %s\n", g.ResourceOID, g.Action, expires, g.GrantedBy)
		}
	})
}

// CheckResult is the output of acl check.
type CheckResult struct {
	Subject  string `json:"subject_oid" yaml:"subject_oid"`
	Resource string `json:"resource_oid" yaml:"resource_oid"`
	Action   string `json:"action" yaml:"action"`
	Allowed  bool   `json:"allowed" yaml:"allowed"`
}

func runCheck(ctx context.Context, opts *ACLOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	e, _, err := opts.openLedger(ctx)
	if err != nil {
		return err
	}
	defer e.Shutdown(ctx)

	result := CheckResult{Subject: opts.Subject, Resource: opts.resource(e), Action: opts.Action}
	result.Allowed, err = e.CheckAccess(ctx, result.Subject, result.Resource, result.Action)
	if err != nil {
		return ledgerExit("access check failed", err)
	}

	if err := out.Success(result, func(w io.Writer) {
		if result.Allowed {
			fmt.Fprintf(w, "✓ %s may %s %s\n", result.Subject, result.Action, result.Resource)
		} else {
			fmt.Fprintf(w, "✗ %s may not %s %s\n", result.Subject, result.Action, result.Resource)
		}
	}); err != nil {
		return err
	}
	if !result.Allowed {
		return NewExitError(ExitFailure, "access denied")
	}
	return nil
}
