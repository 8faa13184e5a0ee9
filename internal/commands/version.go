package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recruitmate/recruitmate-cli/internal/appctx"
	"github.com/recruitmate/recruitmate-cli/internal/output"
	"github.com/recruitmate/recruitmate-cli/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The root skips app setup for this command, so a broken
			// config cannot hide the version.
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Full())
				return err
			}
			return app.OK(map[string]string{
				"version": version.Version,
				"commit":  version.Commit,
				"date":    version.Date,
			}, output.WithSummary(version.Full()))
		},
	}
}
