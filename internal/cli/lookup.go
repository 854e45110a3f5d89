package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
)

// KeyOptions holds the flags naming an enrollment.
type KeyOptions struct {
	*RootOptions
	Customer string
	Program  string
}

func addKeyFlags(cmd *cobra.Command, opts *KeyOptions) {
	cmd.Flags().StringVar(&opts.Customer, "customer", "", "customer id (required)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "program id (required)")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("program")
}

// NewEnrollmentCommand creates the enrollment command.
func NewEnrollmentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enrollment",
		Short: "Show a customer's enrollment in a program",
		Long: `Show the enrollment for a customer and program.

Example:
  loyalty enrollment --customer 42 --program 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts.RootOptions, cmd)
			key, err := parseKey(opts.Customer, opts.Program)
			if err != nil {
				return out.Fail("invalid enrollment key", err)
			}
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
				e, err := a.engine.EnrollmentStatus(ctx, key)
				if err != nil {
					return a.out.Fail("enrollment lookup failed", err)
				}
				return a.out.Success(newEnrollmentView(e))
			})
		},
	}
	addKeyFlags(cmd, opts)

	return cmd
}

// NewCardCommand creates the card command.
func NewCardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "card",
		Short: "Show a customer's reward card for a program",
		Long: `Show the reward card for a customer and program.

Example:
  loyalty card --customer 42 --program 7 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts.RootOptions, cmd)
			key, err := parseKey(opts.Customer, opts.Program)
			if err != nil {
				return out.Fail("invalid enrollment key", err)
			}
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
				c, err := a.engine.Card(ctx, key)
				if err != nil {
					return a.out.Fail("card lookup failed", err)
				}
				return a.out.Success(newCardView(c))
			})
		},
	}
	addKeyFlags(cmd, opts)

	return cmd
}

// NotificationsOptions holds flags for the notifications command.
type NotificationsOptions struct {
	*RootOptions
	Customer string
	Unread   bool
}

// NewNotificationsCommand creates the notifications command.
func NewNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotificationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List a customer's notifications",
		Long: `List a customer's notifications, newest first. Unread notifications
are marked with *.

Example:
  loyalty notifications --customer 42 --unread`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts.RootOptions, cmd)
			customer, err := ident.ParseCustomerID(opts.Customer)
			if err != nil {
				return out.Fail("invalid customer", err)
			}
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
				ns, err := a.engine.Notifications(ctx, customer, opts.Unread)
				if err != nil {
					return a.out.Fail("list notifications failed", err)
				}
				list := notificationList{Notifications: make([]notificationView, 0, len(ns))}
				for _, n := range ns {
					list.Notifications = append(list.Notifications, newNotificationView(n))
				}
				return a.out.Success(list)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Customer, "customer", "", "customer id (required)")
	cmd.Flags().BoolVar(&opts.Unread, "unread", false, "only unread notifications")
	_ = cmd.MarkFlagRequired("customer")

	return cmd
}
