package commands

import (
	"github.com/spf13/cobra"

	"github.com/recruitmate/recruitmate-cli/internal/models"
	"github.com/recruitmate/recruitmate-cli/internal/output"
)

// NewGenerateCVCmd creates the generate-cv command.
func NewGenerateCVCmd() *cobra.Command {
	var cvPath, jobPath string

	cmd := &cobra.Command{
		Use:   "generate-cv",
		Short: "Generate a CV tailored to a job (premium)",
		Long: `Ask the advisor for a version of your CV tailored to a job description.
Requires a premium plan.

  recruitmate generate-cv --cv cv.txt --job job.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if cvPath == "" || jobPath == "" {
				return output.ErrUsageHint("--cv and --job are required", "Pass plain-text files, or - for one of them to read stdin")
			}
			if cvPath == "-" && jobPath == "-" {
				return output.ErrUsage("Only one input can be read from stdin")
			}

			cvText, err := readInput(app, "cv", cvPath)
			if err != nil {
				return err
			}
			jobText, err := readInput(app, "job", jobPath)
			if err != nil {
				return err
			}

			var resp *models.FeatureResponse
			err = withSpinner(app, "Generating CV...", func() (string, error) {
				r, err := app.Match.GenerateCV(cmd.Context(), cvText, jobText)
				resp = r
				return "CV generated", err
			})
			if err != nil {
				return err
			}
			return app.OK(resp, output.WithSummary(featureSummary(resp, "CV generated")))
		},
	}

	cmd.Flags().StringVar(&cvPath, "cv", "", "CV file (- for stdin)")
	cmd.Flags().StringVarP(&jobPath, "job", "j", "", "Job description file (- for stdin)")

	return cmd
}

// NewAdviceCmd creates the advice command.
func NewAdviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advice",
		Short: "Get career advice (premium)",
		Long:  "Ask the advisor for career guidance. Requires a premium plan.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			var resp *models.FeatureResponse
			err = withSpinner(app, "Asking the advisor...", func() (string, error) {
				r, err := app.Match.CareerAdvice(cmd.Context())
				resp = r
				return "Advice ready", err
			})
			if err != nil {
				return err
			}
			return app.OK(resp, output.WithSummary(featureSummary(resp, "Career advice")))
		},
	}
}

func featureSummary(resp *models.FeatureResponse, fallback string) string {
	if resp != nil && resp.Status != "" && resp.Content == "" {
		return resp.Status
	}
	return fallback
}
