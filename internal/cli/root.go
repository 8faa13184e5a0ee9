// Package cli assembles the root command and runs it.
package cli

import (
	"context"
	"errors"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recruitmate/recruitmate-cli/internal/appctx"
	"github.com/recruitmate/recruitmate-cli/internal/commands"
	"github.com/recruitmate/recruitmate-cli/internal/config"
	"github.com/recruitmate/recruitmate-cli/internal/output"
	"github.com/recruitmate/recruitmate-cli/internal/version"
)

// NewRootCmd creates the root command with every subcommand attached.
// opts are passed to appctx.NewApp.
func NewRootCmd(opts ...appctx.Option) *cobra.Command {
	var flags appctx.GlobalFlags
	var jsonOut, quiet bool

	cmd := &cobra.Command{
		Use:           "recruitmate",
		Short:         "Match your CV against job descriptions",
		Long:          "recruitmate scores CVs against job descriptions with the RecruitMate advisor and manages your account.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			switch {
			case quiet:
				flags.Format = output.FormatQuiet.String()
			case jsonOut:
				flags.Format = output.FormatJSON.String()
			}

			cfg, err := config.Load(flags.Overrides())
			if err != nil {
				return output.ErrUsageHint(err.Error(), "Run: recruitmate config show")
			}

			app, err := appctx.NewApp(cfg, flags, opts...)
			if err != nil {
				return err
			}
			cmd.SetContext(appctx.WithApp(cmd.Context(), app))

			if banner := app.RateLimitBanner(); banner != "" && cmd.Name() != "limits" {
				app.Notice("%s", banner)
			}
			return nil
		},
	}

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	cmd.PersistentFlags().StringVarP(&flags.Format, "format", "f", "", "Output format: auto, json, markdown, styled, yaml, quiet")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter JSON output with a jq expression")

	// Connection flags
	cmd.PersistentFlags().StringVar(&flags.BaseURL, "base-url", "", "RecruitMate API base URL")
	cmd.PersistentFlags().IntVar(&flags.Timeout, "timeout", 0, "Request timeout in seconds")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for recovery events, -vv for requests)")
	cmd.PersistentFlags().BoolVar(&flags.Stats, "stats", false, "Show session statistics")
	cmd.PersistentFlags().StringVar(&flags.CacheDir, "cache-dir", "", "Cache directory")

	cmd.AddCommand(
		commands.NewScanCmd(),
		commands.NewHistoryCmd(),
		commands.NewSessionCmd(),
		commands.NewGenerateCVCmd(),
		commands.NewAdviceCmd(),
		commands.NewAuthCmd(),
		commands.NewMeCmd(),
		commands.NewConfigCmd(),
		commands.NewLimitsCmd(),
		commands.NewCommandsCmd(),
		commands.NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command and exits with its exit code.
func Execute() {
	os.Exit(Run(context.Background(), NewRootCmd()))
}

// Run executes root and returns the process exit code. Errors are written
// as structured output.
func Run(ctx context.Context, root *cobra.Command) int {
	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := root.ExecuteContextC(ctx)

	var app *appctx.App
	if executedCmd != nil && executedCmd.Context() != nil {
		app = appctx.FromContext(executedCmd.Context())
	}
	if app != nil {
		defer app.Close()
	}

	if err == nil {
		return output.ExitOK
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	if app != nil {
		_ = app.Err(err)
		return apiErr.ExitCode()
	}

	// Fallback: app not available, e.g. config failed to load
	format := output.FormatAuto
	pf := root.PersistentFlags()
	if name, _ := pf.GetString("format"); name != "" {
		if f, perr := output.ParseFormat(name); perr == nil {
			format = f
		}
	}
	if q, _ := pf.GetBool("quiet"); q {
		format = output.FormatQuiet
	} else if j, _ := pf.GetBool("json"); j {
		format = output.FormatJSON
	}

	writer := output.New(output.Options{
		Format: format,
		Writer: root.OutOrStdout(),
	})
	_ = writer.Err(err)

	return apiErr.ExitCode()
}

var shorthandPattern = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)

// transformCobraError turns cobra's argument and flag errors into usage
// errors.
func transformCobraError(err error) error {
	var outErr *output.Error
	if errors.As(err, &outErr) {
		return err
	}

	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "flag needs an argument: "):
		return output.ErrUsage(strings.TrimPrefix(msg, "flag needs an argument: ") + " requires a value")
	case strings.HasPrefix(msg, "unknown flag: "):
		return output.ErrUsage("Unknown option: " + strings.TrimPrefix(msg, "unknown flag: "))
	case strings.HasPrefix(msg, "unknown shorthand flag: "):
		if m := shorthandPattern.FindStringSubmatch(msg); len(m) > 1 {
			return output.ErrUsage("Unknown option: " + m[1])
		}
		return output.ErrUsage(msg)
	case strings.HasPrefix(msg, "unknown command "):
		return output.ErrUsageHint(msg, "Run: recruitmate commands")
	case strings.Contains(msg, "invalid argument"),
		strings.Contains(msg, "arg(s), received"),
		strings.HasPrefix(msg, "requires at least"):
		return output.ErrUsage(msg)
	}
	return err
}
