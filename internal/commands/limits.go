package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/recruitmate/recruitmate-cli/internal/output"
	"github.com/recruitmate/recruitmate-cli/internal/ratelimit"
)

// limitsStatus is the rate-limit view shown by the limits command.
type limitsStatus struct {
	Limited    bool            `json:"limited"`
	Message    string          `json:"message,omitempty"`
	Info       *ratelimit.Info `json:"info,omitempty"`
	ObservedAt *time.Time      `json:"observed_at,omitempty"`
}

// NewLimitsCmd creates the limits command.
func NewLimitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Show the rate-limit state",
		Long: `Show the most recent rate-limit information reported by the server.
The state is shared by every invocation on this machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			st := limitsStatus{Info: app.Tracker.Current()}
			if snap := app.Recorder.Snapshot(); snap != nil && st.Info != nil {
				observed := snap.ObservedAt
				st.ObservedAt = &observed
			}
			if banner := app.RateLimitBanner(); banner != "" {
				st.Limited = true
				st.Message = banner
			}

			summary := "No rate limit in effect"
			switch {
			case st.Limited:
				summary = st.Message
			case st.Info != nil && st.Info.Limit > 0:
				summary = fmt.Sprintf("%d of %d requests remaining", st.Info.Remaining, st.Info.Limit)
			}
			return app.OK(st, output.WithSummary(summary))
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the stored rate-limit state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			app.Tracker.Reset()
			if err := app.Recorder.Clear(); err != nil {
				return fmt.Errorf("clearing rate-limit state: %w", err)
			}
			return app.OK(map[string]string{"status": "reset"}, output.WithSummary("Rate-limit state cleared"))
		},
	})

	return cmd
}
