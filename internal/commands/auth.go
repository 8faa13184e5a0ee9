// Package commands implements the CLI commands.
package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/recruitmate/recruitmate-cli/internal/account"
	"github.com/recruitmate/recruitmate-cli/internal/appctx"
	"github.com/recruitmate/recruitmate-cli/internal/models"
	"github.com/recruitmate/recruitmate-cli/internal/output"
	"github.com/recruitmate/recruitmate-cli/internal/tui"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  "Sign in, create an account, and manage stored RecruitMate credentials.",
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthRegisterCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
		newAuthRefreshCmd(),
		newAuthTokenCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var username string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to RecruitMate",
		Long: `Sign in with a username or email address.

In a terminal, missing values are prompted for. In scripts, pass the
password on stdin:

  printf '%s\n' "$PASSWORD" | recruitmate auth login -u ada --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			var password string
			if passwordStdin {
				if password, err = readSecret(app.Stdin); err != nil {
					return err
				}
			}

			if username == "" || password == "" {
				if !app.IsInteractive() {
					return output.ErrUsageHint("Username and password required",
						"Pass --username with --password-stdin, or run in a terminal")
				}
				if username, password, err = tui.Credentials(username); err != nil {
					return promptErr(err)
				}
			}

			var resp *models.AuthResponse
			err = withSpinner(app, "Signing in...", func() (string, error) {
				r, err := app.Account.Login(cmd.Context(), username, password)
				if err != nil {
					return "", err
				}
				resp = r
				return "Signed in as " + r.User.DisplayName(), nil
			})
			if err != nil {
				return err
			}

			return app.OK(map[string]any{
				"status": "logged_in",
				"user":   resp.User,
			},
				output.WithSummary("Signed in as "+resp.User.DisplayName()),
				output.WithBreadcrumbs(
					output.Breadcrumb{Action: "scan", Cmd: "recruitmate scan --cv cv.txt --job job.txt", Description: "Analyze a CV"},
					output.Breadcrumb{Action: "profile", Cmd: "recruitmate me", Description: "View your profile"},
				),
			)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username or email address")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

func newAuthRegisterCmd() *cobra.Command {
	var reg tui.Registration
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a RecruitMate account",
		Long: `Create an account and sign in.

Usernames are 3-30 letters, numbers, underscores, or hyphens. Passwords
need at least 8 characters with a letter, a number, and a special
character.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			if passwordStdin {
				if reg.Password, err = readSecret(app.Stdin); err != nil {
					return err
				}
			}

			if reg.Username == "" || reg.Email == "" || reg.Password == "" {
				if !app.IsInteractive() {
					return output.ErrUsageHint("Username, email, and password required",
						"Pass --username and --email with --password-stdin, or run in a terminal")
				}
				reg, err = tui.RegistrationForm(reg,
					problemValidator(account.UsernameProblems),
					func(s string) error {
						if !account.ValidEmail(s) {
							return errors.New("please enter a valid email address")
						}
						return nil
					},
					problemValidator(account.PasswordProblems),
				)
				if err != nil {
					return promptErr(err)
				}
			}

			var resp *models.AuthResponse
			err = withSpinner(app, "Creating account...", func() (string, error) {
				r, err := app.Account.Register(cmd.Context(), reg.Username, reg.Email, reg.Password)
				if err != nil {
					return "", err
				}
				resp = r
				return "Account created", nil
			})
			if err != nil {
				return err
			}

			return app.OK(map[string]any{
				"status": "registered",
				"user":   resp.User,
			},
				output.WithSummary("Welcome, "+resp.User.DisplayName()),
				output.WithBreadcrumbs(
					output.Breadcrumb{Action: "profile", Cmd: "recruitmate me update --first-name NAME", Description: "Complete your profile"},
				),
			)
		},
	}

	cmd.Flags().StringVarP(&reg.Username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Email address")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove stored credentials",
		Long: `Revoke the refresh token on the server, then remove stored credentials
and the saved scan. Local data is removed even when the server cannot be
reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			revoked := app.Account.Logout(cmd.Context())

			summary := "Signed out"
			if !revoked {
				summary = "Signed out locally"
			}
			return app.OK(map[string]any{
				"status":  "logged_out",
				"revoked": revoked,
			}, output.WithSummary(summary))
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Display the stored session without contacting the server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			st := app.Account.Status()
			if !st.Authenticated {
				return app.OK(st,
					output.WithSummary("Not authenticated"),
					output.WithBreadcrumbs(output.Breadcrumb{
						Action:      "login",
						Cmd:         "recruitmate auth login",
						Description: "Sign in",
					}),
				)
			}

			return app.OK(st, output.WithSummary(statusSummary(st, time.Now())))
		},
	}
}

func statusSummary(st account.Status, now time.Time) string {
	summary := "Authenticated"
	if name := st.User.DisplayName(); name != "" {
		summary += " as " + name
	}
	summary += fmt.Sprintf(" (%s)", st.Plan)
	switch {
	case st.ExpiresAt == nil:
	case st.Expired && st.HasRefreshToken:
		summary += ", access token expired; it refreshes on the next request"
	case st.Expired:
		summary += ", access token expired"
	default:
		summary += fmt.Sprintf(", token expires in %s", st.ExpiresAt.Sub(now).Round(time.Second))
	}
	return summary
}

func newAuthRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token",
		Long:  "Exchange the stored refresh token for a new access token now.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			if err := app.Account.Refresh(cmd.Context()); err != nil {
				return err
			}

			return app.OK(map[string]string{
				"status": "refreshed",
			}, output.WithSummary("Token refreshed successfully"))
		},
	}
}

func newAuthTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the access token",
		Long: `Print the stored access token for use with other tools.

  curl -H "Authorization: Bearer $(recruitmate auth token)" ...

The raw token is printed unless JSON, YAML, or --jq output is requested.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			return printToken(app)
		},
	}
}

func printToken(app *appctx.App) error {
	token := app.Store.AccessToken()
	if token == "" {
		return output.ErrAuth("Not authenticated")
	}
	if app.IsMachineOutput() {
		return app.OK(map[string]string{"token": token})
	}
	_, err := fmt.Fprintln(app.Stdout, token)
	return err
}
