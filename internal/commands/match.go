package commands

import (
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/recruitmate/recruitmate-cli/internal/appctx"
	"github.com/recruitmate/recruitmate-cli/internal/history"
	"github.com/recruitmate/recruitmate-cli/internal/match"
	"github.com/recruitmate/recruitmate-cli/internal/models"
	"github.com/recruitmate/recruitmate-cli/internal/output"
	"github.com/recruitmate/recruitmate-cli/internal/richtext"
	"github.com/recruitmate/recruitmate-cli/internal/tui"
)

type scanOptions struct {
	cv     string
	jobs   []string
	alpha  float64
	deep   bool
	save   bool
	resume bool
}

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Compare a CV with job descriptions",
		Long: `Score how well a CV matches one or more job descriptions.

Inputs are plain-text files; "-" reads one of them from stdin. In a
terminal, missing inputs can be pasted instead.

  recruitmate scan --cv cv.txt --job job.txt
  recruitmate scan --cv cv.txt --job a.txt --job b.txt
  pbpaste | recruitmate scan --cv - --job job.md --deep

--save keeps the inputs and result so "scan --resume" and "session show"
can use them later. Signing out removes the saved scan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("alpha") {
				opts.alpha = app.Config.Alpha
			}
			return runScan(cmd, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.cv, "cv", "", "CV file (- for stdin)")
	cmd.Flags().StringArrayVarP(&opts.jobs, "job", "j", nil, "Job description file (repeatable, - for stdin)")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", 0, "Weight of semantic vs. keyword matching, 0 to 1 (default from config)")
	cmd.Flags().BoolVar(&opts.deep, "deep", false, "Request an AI-written report")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save the inputs and result for later")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Reuse inputs from the saved scan")

	return cmd
}

func runScan(cmd *cobra.Command, app *appctx.App, opts scanOptions) error {
	stdinUses := 0
	if opts.cv == "-" {
		stdinUses++
	}
	for _, j := range opts.jobs {
		if j == "-" {
			stdinUses++
		}
	}
	if stdinUses > 1 {
		return output.ErrUsage("Only one input can be read from stdin")
	}
	if opts.save && len(opts.jobs) > 1 {
		return output.ErrUsage("--save works with a single job description")
	}

	var saved match.Session
	if opts.resume {
		saved = app.Match.LoadSession()
		if saved.Empty() {
			return output.ErrUsageHint("No saved scan", "Run scan with --save first")
		}
	}

	mode := match.InputFile
	cvText, pasted, err := scanInput(app, "cv", opts.cv, saved.CVText, "Paste your CV", match.MinCVLength)
	if err != nil {
		return err
	}
	if pasted {
		mode = match.InputText
	}

	var jobs []string
	for _, path := range opts.jobs {
		text, err := readInput(app, "job", path)
		if err != nil {
			return err
		}
		jobs = append(jobs, text)
	}
	if len(jobs) == 0 {
		text, pasted, err := scanInput(app, "job", "", saved.JobDescription, "Paste the job description", match.MinJobDescLength)
		if err != nil {
			return err
		}
		if pasted {
			mode = match.InputText
		}
		jobs = []string{text}
	}
	if opts.resume && saved.InputMode != "" && opts.cv == "" && len(opts.jobs) == 0 {
		mode = saved.InputMode
	}

	req := models.MatchRequest{
		CVText:         cvText,
		Alpha:          opts.alpha,
		AIDeepAnalysis: opts.deep,
	}

	if len(jobs) > 1 {
		return runBatchScan(cmd, app, req, jobs, opts.deep)
	}

	req.JobDescription = jobs[0]
	var result *models.MatchResult
	err = withSpinner(app, "Analyzing...", func() (string, error) {
		r, err := app.Match.Analyze(cmd.Context(), req)
		if err != nil {
			return "", err
		}
		result = r
		return matchSummary(r), nil
	})
	if err != nil {
		return err
	}

	recordHistory(app, match.Summarize(req.JobDescription), result, opts.deep)

	if opts.save {
		if err := app.Match.SaveSession(match.Session{
			CVText:         req.CVText,
			JobDescription: req.JobDescription,
			InputMode:      mode,
			Result:         result,
		}); err != nil {
			return fmt.Errorf("saving scan: %w", err)
		}
	}

	crumbs := []output.Breadcrumb{
		{Action: "history", Cmd: "recruitmate history", Description: "Recent analyses"},
	}
	if !opts.deep {
		crumbs = append(crumbs, output.Breadcrumb{
			Action: "deep", Cmd: "recruitmate scan --resume --deep", Description: "Add an AI report",
		})
	}
	if err := app.OK(result,
		output.WithSummary(matchSummary(result)),
		output.WithBreadcrumbs(crumbs...),
	); err != nil {
		return err
	}
	return writeReport(app, result)
}

// scanInput returns the text for one input: the file at path, the saved
// value, or a pasted value. pasted reports the last case.
func scanInput(app *appctx.App, flag, path, saved, prompt string, minLen int) (text string, pasted bool, err error) {
	switch {
	case path != "":
		text, err = readInput(app, flag, path)
		return text, false, err
	case saved != "":
		return saved, false, nil
	case !app.IsInteractive():
		return "", false, output.ErrUsageHint(fmt.Sprintf("--%s is required", flag),
			fmt.Sprintf("Pass --%s FILE, or - to read stdin", flag))
	}
	text, err = tui.TextArea(prompt, "", func(s string) error {
		if utf8.RuneCountInString(s) < minLen {
			return fmt.Errorf("at least %d characters", minLen)
		}
		return nil
	})
	if err != nil {
		return "", false, promptErr(err)
	}
	text, err = richtext.Normalize([]byte(text))
	return text, true, err
}

func runBatchScan(cmd *cobra.Command, app *appctx.App, req models.MatchRequest, jobs []string, deep bool) error {
	var results []match.BatchResult
	err := withSpinner(app, fmt.Sprintf("Analyzing %d job descriptions...", len(jobs)), func() (string, error) {
		r, err := app.Match.AnalyzeBatch(cmd.Context(), req, jobs)
		if err != nil {
			return "", err
		}
		results = r
		return fmt.Sprintf("Analyzed %d job descriptions", len(r)), nil
	})
	if err != nil {
		return err
	}

	for _, r := range results {
		recordHistory(app, r.Job, r.Result, deep)
	}

	return app.OK(results, output.WithSummary(batchSummary(results)))
}

func batchSummary(results []match.BatchResult) string {
	summary := fmt.Sprintf("Analyzed %d job descriptions", len(results))
	best := slices.MaxFunc(results, func(a, b match.BatchResult) int {
		return scoreOf(a.Score) - scoreOf(b.Score)
	})
	if best.Score != nil {
		summary += fmt.Sprintf("; best match is #%d (%d%%)", best.Index, *best.Score)
	}
	return summary
}

func scoreOf(score *int) int {
	if score == nil {
		return -1
	}
	return *score
}

func matchSummary(r *models.MatchResult) string {
	status := match.ResultStatus(r)
	if status == models.StatusNone {
		status = "Analyzed"
	}
	summary := "Match: " + string(status)
	if r != nil && r.OverallScore != nil {
		summary += fmt.Sprintf(" (%d%%)", *r.OverallScore)
	}
	if r != nil && len(r.MissingKeywords) > 0 {
		summary += fmt.Sprintf(", %d missing keywords", len(r.MissingKeywords))
	}
	return summary
}

// writeReport prints the AI report below the result for people.
func writeReport(app *appctx.App, r *models.MatchResult) error {
	if r == nil || r.AIReport == nil || *r.AIReport == "" || app.IsMachineOutput() {
		return nil
	}
	var rendered string
	var err error
	if app.IsTerminalOutput() {
		rendered, err = richtext.RenderMarkdown(*r.AIReport)
	} else {
		rendered, err = richtext.RenderPlain(*r.AIReport, richtext.DefaultWidth)
	}
	if err != nil {
		rendered = *r.AIReport
	}
	_, err = fmt.Fprintf(app.Stdout, "\n%s\n", rendered)
	return err
}

func recordHistory(app *appctx.App, job string, r *models.MatchResult, deep bool) {
	entry := history.Entry{
		ID:     uuid.NewString(),
		Job:    job,
		Status: string(match.ResultStatus(r)),
		Deep:   deep,
		At:     time.Now(),
	}
	if r != nil {
		entry.Score = r.OverallScore
	}
	if u := app.Store.CachedUser(); u != nil {
		entry.Username = u.Username
	}
	app.History.Add(entry)
	if err := app.History.LastError(); err != nil {
		app.Logger.Debug("history not saved", "error", err)
	}
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent analyses",
		Long:  "List the most recent analyses run by the signed-in user on this machine.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			entries := app.History.List(historyUser(app), limit)
			summary := fmt.Sprintf("%d recent analyses", len(entries))
			if len(entries) == 0 {
				summary = "No analyses yet"
			}
			return app.OK(entries,
				output.WithSummary(summary),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "scan",
					Cmd:         "recruitmate scan --cv cv.txt --job job.txt",
					Description: "Analyze a CV",
				}),
			)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of entries to show (0 for all)")
	cmd.AddCommand(newHistoryClearCmd())

	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the analysis history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			app.History.Clear(historyUser(app))
			if err := app.History.LastError(); err != nil {
				return fmt.Errorf("clearing history: %w", err)
			}
			return app.OK(map[string]string{"status": "cleared"}, output.WithSummary("History cleared"))
		},
	}
}

func historyUser(app *appctx.App) string {
	if u := app.Store.CachedUser(); u != nil {
		return u.Username
	}
	return ""
}

// NewSessionCmd creates the saved-scan command group.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the saved scan",
		Long:  "Show or clear the inputs and result kept by scan --save.",
		Args:  cobra.NoArgs,
		RunE:  runSessionShow,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the saved scan",
			Args:  cobra.NoArgs,
			RunE:  runSessionShow,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the saved scan",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := appFrom(cmd)
				if err != nil {
					return err
				}
				app.Match.ClearSession()
				return app.OK(map[string]string{"status": "cleared"}, output.WithSummary("Saved scan removed"))
			},
		},
	)

	return cmd
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}

	sess := app.Match.LoadSession()
	if sess.Empty() {
		return app.OK(sess, output.WithSummary("No saved scan"))
	}

	summary := "Saved scan"
	if sess.Result != nil {
		summary += ": " + matchSummary(sess.Result)
	}
	return app.OK(sess,
		output.WithSummary(summary),
		output.WithBreadcrumbs(output.Breadcrumb{
			Action:      "resume",
			Cmd:         "recruitmate scan --resume",
			Description: "Analyze the saved inputs again",
		}),
	)
}
