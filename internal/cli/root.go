package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/notify"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/provision"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	EnvFile    string
	Driver     string // overrides database.driver when set
	Database   string // overrides database.dsn when set

	// Clock, IDs, Numbers and Notifier override the engine's collaborators
	// (for testing). Nil values select the configured defaults.
	Clock    model.Clock
	IDs      ident.Generator
	Numbers  provision.CardNumberer
	Notifier notify.Notifier
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the loyalty CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loyalty",
		Short: "Loyalty program invitations and reward cards",
		Long: `Manage loyalty program invitations, enrollments and reward cards.

Businesses invite customers to a program; customers approve or decline.
Approval enrolls the customer and provisions a reward card in one
transaction. The reconcile command repairs enrollments whose card has
drifted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "path to dotenv file (default .env if present)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "db-driver", "", "database driver (sqlite3|postgres)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "database DSN or SQLite path")

	// Add subcommands
	cmd.AddCommand(NewInviteCommand(opts))
	cmd.AddCommand(NewRespondCommand(opts))
	cmd.AddCommand(NewLeaveCommand(opts))
	cmd.AddCommand(NewExpireCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewEnrollmentCommand(opts))
	cmd.AddCommand(NewCardCommand(opts))
	cmd.AddCommand(NewInvitationsCommand(opts))
	cmd.AddCommand(NewNotificationsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
