package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
)

// NewRespondCommand creates the respond command.
func NewRespondCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "respond <invitation-id> <approve|decline>",
		Short: "Answer an invitation",
		Long: `Approve or decline a pending invitation.

Approval enrolls the customer and provisions (or reactivates) their
reward card. Answering an invitation that was already answered returns
the original outcome without changing anything.

Exit codes:
  0 - Invitation answered (or replayed)
  1 - Rejected (not found, expired, invalid decision)
  2 - Command error

Example:
  loyalty respond 0190f6a2-7c1e-7b3a-9f1d-2c4b5a6d7e8f approve`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRespond(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runRespond(opts *RootOptions, rawID, rawDecision string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	id, err := ident.ParseInvitationID(rawID)
	if err != nil {
		return out.Fail("invalid invitation id", err)
	}
	decision, err := model.ParseDecision(rawDecision)
	if err != nil {
		return out.Fail("invalid decision", err)
	}

	return withApp(opts, cmd, func(ctx context.Context, a *app) error {
		res, err := a.engine.Respond(ctx, id, decision)
		if err != nil {
			return a.out.Fail("respond failed", err)
		}
		return a.out.Success(resultView{res})
	})
}

// NewLeaveCommand creates the leave command.
func NewLeaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Cancel a customer's enrollment",
		Long: `Cancel an enrollment and deactivate its reward card.

Points and the card are kept; a later approval reactivates both.

Example:
  loyalty leave --customer 42 --program 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeave(opts, cmd)
		},
	}

	addKeyFlags(cmd, opts)

	return cmd
}

func runLeave(opts *KeyOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	key, err := parseKey(opts.Customer, opts.Program)
	if err != nil {
		return out.Fail("invalid enrollment key", err)
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		if err := a.engine.Leave(ctx, key); err != nil {
			return a.out.Fail("leave failed", err)
		}
		return a.out.Success(messageView{Message: "Enrollment " + key.String() + " cancelled"})
	})
}

func parseKey(rawCustomer, rawProgram string) (model.Key, error) {
	customer, err := ident.ParseCustomerID(rawCustomer)
	if err != nil {
		return model.Key{}, err
	}
	program, err := ident.ParseProgramID(rawProgram)
	if err != nil {
		return model.Key{}, err
	}
	return model.Key{CustomerID: customer, ProgramID: program}, nil
}
