package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
)

// InviteOptions holds flags for the invite command.
type InviteOptions struct {
	*RootOptions
	Customer string
	Business string
	Program  string
}

// NewInviteCommand creates the invite command.
func NewInviteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InviteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Invite a customer to a loyalty program",
		Long: `Create a PENDING invitation and the notification that offers it.

A customer may hold one pending invitation per program. Pending
invitations past their deadline are expired first and do not block.

Example:
  loyalty invite --customer 42 --business 3 --program 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvite(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Customer, "customer", "", "customer id (required)")
	cmd.Flags().StringVar(&opts.Business, "business", "", "business id (required)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "program id (required)")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("business")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}

func runInvite(opts *InviteOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	customer, err := ident.ParseCustomerID(opts.Customer)
	if err != nil {
		return out.Fail("invalid customer", err)
	}
	business, err := ident.ParseBusinessID(opts.Business)
	if err != nil {
		return out.Fail("invalid business", err)
	}
	program, err := ident.ParseProgramID(opts.Program)
	if err != nil {
		return out.Fail("invalid program", err)
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		inv, err := a.invites.Create(ctx, customer, business, program)
		if err != nil {
			return a.out.Fail("invite failed", err)
		}
		return a.out.Success(newInvitationView(inv))
	})
}

// InvitationsOptions holds flags for the invitations command.
type InvitationsOptions struct {
	*RootOptions
	Customer string
}

// NewInvitationsCommand creates the invitations command.
func NewInvitationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvitationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invitations",
		Short: "List a customer's open invitations",
		Long: `List the invitations a customer can still answer, newest first.

Example:
  loyalty invitations --customer 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvitations(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Customer, "customer", "", "customer id (required)")
	_ = cmd.MarkFlagRequired("customer")

	return cmd
}

func runInvitations(opts *InvitationsOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	customer, err := ident.ParseCustomerID(opts.Customer)
	if err != nil {
		return out.Fail("invalid customer", err)
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		pending, err := a.invites.Pending(ctx, customer)
		if err != nil {
			return a.out.Fail("list invitations failed", err)
		}
		list := invitationList{Invitations: make([]invitationView, 0, len(pending))}
		for _, inv := range pending {
			list.Invitations = append(list.Invitations, newInvitationView(inv))
		}
		return a.out.Success(list)
	})
}
