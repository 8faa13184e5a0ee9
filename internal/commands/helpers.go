package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/recruitmate/recruitmate-cli/internal/appctx"
	"github.com/recruitmate/recruitmate-cli/internal/output"
	"github.com/recruitmate/recruitmate-cli/internal/richtext"
	"github.com/recruitmate/recruitmate-cli/internal/tui"
)

// appFrom returns the app attached to cmd's context.
func appFrom(cmd *cobra.Command) (*appctx.App, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return app, nil
}

// readSecret reads the first line of r, as piped to --password-stdin.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(io.LimitReader(r, 4096)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", output.ErrUsage("No password on stdin")
	}
	return secret, nil
}

// readInput loads a CV or job description from a file, or stdin for "-".
func readInput(app *appctx.App, flag, path string) (string, error) {
	text, err := richtext.ReadText(path, app.Stdin)
	if err != nil {
		return "", output.ErrUsageHint(fmt.Sprintf("--%s: %v", flag, err), "Provide a plain-text (.txt or .md) file")
	}
	return text, nil
}

// promptErr converts an aborted prompt into a usage error.
func promptErr(err error) error {
	if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, tui.ErrInterrupted) {
		return output.ErrUsage("Canceled")
	}
	return err
}

// problemValidator adapts a rule checker to a form validator that
// reports the first broken rule.
func problemValidator(problems func(string) []string) tui.Validator {
	return func(s string) error {
		if p := problems(s); len(p) > 0 {
			return errors.New(p[0])
		}
		return nil
	}
}

// withSpinner runs fn behind a spinner on stderr when it is a terminal
// and output is for people. fn returns the completion line.
func withSpinner(app *appctx.App, message string, fn func() (string, error)) error {
	if app.IsMachineOutput() {
		_, err := fn()
		return err
	}
	_, err := tui.NewSpinner(message, app.Stderr).Run(fn)
	return promptErr(err)
}
