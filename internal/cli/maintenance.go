package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewExpireCommand creates the expire command.
func NewExpireCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire invitations past their deadline",
		Long: `Mark every PENDING invitation whose deadline has passed as EXPIRED
and close the action on its notification. Safe to run repeatedly.

Example:
  loyalty expire --db ./loyalty.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				n, err := a.invites.ExpireStale(ctx, a.clock.Now())
				if err != nil {
					return a.out.Fail("expire failed", err)
				}
				return a.out.Success(messageView{
					Message: fmt.Sprintf("Expired %d invitation(s)", n),
					Count:   &n,
				})
			})
		},
	}
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair drift between enrollments, cards and notifications",
		Long: `Scan for enrollments without a matching card, cards without an
active enrollment, and answered invitations whose notification still
offers an action, and repair each record in its own transaction.

A second run right after a clean run writes nothing.

Exit codes:
  0 - Sweep finished (see failures in output)
  1 - One or more records could not be repaired
  2 - Command error

Example:
  loyalty reconcile --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				report, err := a.sweep.Run(ctx)
				if err != nil {
					return a.out.Fail("reconcile failed", err)
				}
				if err := a.out.Success(reportView{report}); err != nil {
					return err
				}
				if len(report.Failures) > 0 {
					return &ExitError{
						Code:     ExitFailure,
						Message:  fmt.Sprintf("%d record(s) could not be repaired", len(report.Failures)),
						Reported: true,
					}
				}
				return nil
			})
		},
	}
}
