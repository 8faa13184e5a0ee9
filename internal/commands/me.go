package commands

import (
	"github.com/spf13/cobra"

	"github.com/recruitmate/recruitmate-cli/internal/models"
	"github.com/recruitmate/recruitmate-cli/internal/output"
	"github.com/recruitmate/recruitmate-cli/internal/tui"
)

// NewMeCmd creates the profile command group. Without a subcommand it
// shows the profile.
func NewMeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "me",
		Short: "Manage your profile",
		Long:  "Show, update, or delete the signed-in account.",
		Args:  cobra.NoArgs,
		RunE:  runMeShow,
	}

	cmd.AddCommand(
		newMeShowCmd(),
		newMeUpdateCmd(),
		newMeDeleteCmd(),
	)

	return cmd
}

func newMeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE:  runMeShow,
	}
}

func runMeShow(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}

	user, err := app.Account.Profile(cmd.Context())
	if err != nil {
		return err
	}

	return app.OK(user,
		output.WithSummary(user.DisplayName()+" ("+user.Plan()+")"),
		output.WithBreadcrumbs(
			output.Breadcrumb{Action: "update", Cmd: "recruitmate me update --first-name NAME", Description: "Update your profile"},
		),
	)
}

func newMeUpdateCmd() *cobra.Command {
	var username, firstName, lastName, birthDate string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update your profile",
		Long: `Update profile fields. Only the flags given are sent.

  recruitmate me update --first-name Ada --birth-date 1990-12-10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			var update models.ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("username") {
				update.Username = &username
			}
			if flags.Changed("first-name") {
				update.FirstName = &firstName
			}
			if flags.Changed("last-name") {
				update.LastName = &lastName
			}
			if flags.Changed("birth-date") {
				update.BirthDate = &birthDate
			}

			user, err := app.Account.UpdateProfile(cmd.Context(), update)
			if err != nil {
				return err
			}

			return app.OK(user, output.WithSummary("Profile updated"))
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "New username")
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&birthDate, "birth-date", "", "Birth date (YYYY-MM-DD)")

	return cmd
}

func newMeDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete your account",
		Long:  "Permanently delete the signed-in account and remove stored credentials.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			if !yes {
				if !app.IsInteractive() {
					return output.ErrUsageHint("Confirmation required", "Pass --yes to delete the account")
				}
				ok, err := tui.ConfirmDangerous("Delete your RecruitMate account? This cannot be undone.")
				if err != nil {
					return promptErr(err)
				}
				if !ok {
					return output.ErrUsage("Canceled")
				}
			}

			if err := app.Account.DeleteAccount(cmd.Context()); err != nil {
				return err
			}

			return app.OK(map[string]string{
				"status": "deleted",
			}, output.WithSummary("Account deleted"))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
