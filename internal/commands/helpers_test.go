package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitmate/recruitmate-cli/internal/account"
	"github.com/recruitmate/recruitmate-cli/internal/appctx"
	"github.com/recruitmate/recruitmate-cli/internal/auth"
	"github.com/recruitmate/recruitmate-cli/internal/config"
	"github.com/recruitmate/recruitmate-cli/internal/output"
)

// testEnv is an app wired to a local test server.
type testEnv struct {
	app    *appctx.App
	store  *auth.Store
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestEnv(t *testing.T, h http.Handler) *testEnv {
	t.Helper()
	t.Setenv(appctx.DebugEnv, "")

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.BaseURL = srv.URL
	cfg.CacheDir = t.TempDir()
	cfg.Format = "json"

	env := &testEnv{
		store:  auth.NewFileStore(t.TempDir(), srv.URL),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	app, err := appctx.NewApp(cfg, appctx.GlobalFlags{},
		appctx.WithIO(strings.NewReader(""), env.stdout, env.stderr),
		appctx.WithStore(env.store),
	)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	env.app = app
	return env
}

// useFormat switches the app's output format.
func (e *testEnv) useFormat(f output.Format) {
	e.app.Output = output.New(output.Options{Format: f, Writer: e.stdout})
}

// run executes cmd with args and the app in its context.
func (e *testEnv) run(cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SetContext(appctx.WithApp(context.Background(), e.app))

	// Suppress cobra output during tests
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	return cmd.Execute()
}

// envelope decodes the JSON written to stdout.
func (e *testEnv) envelope(t *testing.T) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(e.stdout.Bytes(), &env), e.stdout.String())
	return env
}

func (e *testEnv) data(t *testing.T) map[string]any {
	t.Helper()
	data, ok := e.envelope(t)["data"].(map[string]any)
	require.True(t, ok, "data is not an object: %s", e.stdout.String())
	return data
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func errCode(err error) string {
	if e := output.AsError(err); e != nil {
		return e.Code
	}
	return ""
}

func TestAppFromWithoutApp(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	_, err := appFrom(cmd)
	assert.EqualError(t, err, "app not initialized")
}

func TestReadSecret(t *testing.T) {
	secret, err := readSecret(strings.NewReader("hunter2!\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2!", secret)

	secret, err = readSecret(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", secret)

	_, err = readSecret(strings.NewReader(""))
	assert.Equal(t, output.CodeUsage, errCode(err))
}

func TestReadInput(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	path := writeFile(t, "cv.txt", "\ufeffLine one\r\nLine two\r\n")
	text, err := readInput(env.app, "cv", path)
	require.NoError(t, err)
	assert.Equal(t, "Line one\nLine two", text)

	env.app.Stdin = strings.NewReader("from stdin\n")
	text, err = readInput(env.app, "job", "-")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", text)

	_, err = readInput(env.app, "cv", filepath.Join(t.TempDir(), "missing.txt"))
	e := output.AsError(err)
	assert.Equal(t, output.CodeUsage, e.Code)
	assert.Contains(t, e.Message, "--cv:")
}

func TestPromptErr(t *testing.T) {
	assert.Equal(t, output.CodeUsage, errCode(promptErr(huh.ErrUserAborted)))
	other := errors.New("boom")
	assert.Equal(t, other, promptErr(other))
}

func TestProblemValidator(t *testing.T) {
	v := problemValidator(account.PasswordProblems)
	assert.NoError(t, v("s3cure!pass"))
	assert.EqualError(t, v("short"), "Password must be at least 8 characters long")
}

func TestWithSpinnerRunsInlineForMachineOutput(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())
	ran := false
	err := withSpinner(env.app, "working", func() (string, error) {
		ran = true
		return "done", nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Empty(t, env.stderr.String())
}
