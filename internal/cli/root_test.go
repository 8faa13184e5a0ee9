package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitmate/recruitmate-cli/internal/appctx"
	"github.com/recruitmate/recruitmate-cli/internal/auth"
	"github.com/recruitmate/recruitmate-cli/internal/commands"
	"github.com/recruitmate/recruitmate-cli/internal/config"
	"github.com/recruitmate/recruitmate-cli/internal/output"
)

// testRoot builds a root command with isolated config, cache, and
// credentials. Output from the app goes to stdout; fallback errors go to
// the root command's writer, which is also stdout.
func testRoot(t *testing.T) (*cobra.Command, *auth.Store, *bytes.Buffer) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(appctx.DebugEnv, "")

	store := auth.NewFileStore(t.TempDir(), "http://localhost:8000")
	stdout := &bytes.Buffer{}
	root := NewRootCmd(
		appctx.WithIO(strings.NewReader(""), stdout, &bytes.Buffer{}),
		appctx.WithStore(store),
	)
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	return root, store, stdout
}

func run(t *testing.T, root *cobra.Command, args ...string) int {
	t.Helper()
	root.SetArgs(append(args, "--cache-dir", t.TempDir()))
	return Run(context.Background(), root)
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), buf.String())
	return m
}

func TestTransformCobraError(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"flag needs an argument: --cv", "--cv requires a value"},
		{"unknown flag: --bogus", "Unknown option: --bogus"},
		{"unknown shorthand flag: 'z' in -z", "Unknown option: -z"},
		{`unknown command "bogus" for "recruitmate"`, `unknown command "bogus" for "recruitmate"`},
		{`invalid argument "x" for "--timeout" flag`, `invalid argument "x" for "--timeout" flag`},
		{"accepts 1 arg(s), received 2", "accepts 1 arg(s), received 2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e := output.AsError(transformCobraError(errors.New(tt.in)))
			assert.Equal(t, output.CodeUsage, e.Code)
			assert.Equal(t, tt.want, e.Message)
		})
	}

	e := output.AsError(transformCobraError(errors.New(`unknown command "x" for "recruitmate"`)))
	assert.Equal(t, "Run: recruitmate commands", e.Hint)
}

func TestTransformCobraErrorPassesThrough(t *testing.T) {
	orig := output.ErrNotFound("job")
	assert.Same(t, orig, transformCobraError(orig))

	plain := errors.New("something else")
	assert.Equal(t, plain, transformCobraError(plain))
}

func TestRunUnknownFlag(t *testing.T) {
	root, _, stdout := testRoot(t)

	code := run(t, root, "auth", "status", "--json", "--bogus")

	assert.Equal(t, output.ExitUsage, code)
	env := decode(t, stdout)
	assert.Equal(t, false, env["ok"])
	assert.Equal(t, output.CodeUsage, env["code"])
	assert.Equal(t, "Unknown option: --bogus", env["error"])
}

func TestRunUnknownCommand(t *testing.T) {
	root, _, stdout := testRoot(t)

	code := run(t, root, "bogus", "--json")

	assert.Equal(t, output.ExitUsage, code)
	assert.Contains(t, stdout.String(), "recruitmate commands")
}

func TestRunAuthTokenWithoutLogin(t *testing.T) {
	root, _, stdout := testRoot(t)

	code := run(t, root, "auth", "token", "--json")

	assert.Equal(t, output.ExitAuth, code)
	env := decode(t, stdout)
	assert.Equal(t, output.CodeAuth, env["code"])
	assert.Equal(t, "Run: recruitmate auth login", env["hint"])
}

func TestRunAuthToken(t *testing.T) {
	root, store, stdout := testRoot(t)
	store.SetTokens("access-1", "refresh-1")

	code := run(t, root, "auth", "token", "--quiet")

	assert.Equal(t, output.ExitOK, code)
	assert.NotContains(t, stdout.String(), `"ok"`)
	assert.Contains(t, stdout.String(), "access-1")
}

func TestRunJSONEnvelope(t *testing.T) {
	root, _, stdout := testRoot(t)

	code := run(t, root, "auth", "status", "--json")

	assert.Equal(t, output.ExitOK, code)
	env := decode(t, stdout)
	assert.Equal(t, true, env["ok"])
	assert.Equal(t, "Not authenticated", env["summary"])
}

func TestRunInvalidFormat(t *testing.T) {
	root, _, stdout := testRoot(t)

	code := run(t, root, "auth", "status", "--format", "xml")

	assert.Equal(t, output.ExitUsage, code)
	assert.Contains(t, stdout.String(), `unknown format`)
}

func TestRunInvalidConfig(t *testing.T) {
	root, _, stdout := testRoot(t)
	t.Setenv(config.EnvPrefix+"ALPHA", "1.5")

	code := run(t, root, "auth", "status", "--json")

	assert.Equal(t, output.ExitUsage, code)
	env := decode(t, stdout)
	assert.Contains(t, env["error"], "invalid alpha")
	assert.Equal(t, "Run: recruitmate config show", env["hint"])
}

func TestRunVersionSkipsSetup(t *testing.T) {
	root, _, stdout := testRoot(t)

	code := run(t, root, "version", "--format", "xml")

	assert.Equal(t, output.ExitOK, code)
	assert.Contains(t, stdout.String(), "recruitmate version")
}

func TestCatalogMatchesRegisteredCommands(t *testing.T) {
	root := NewRootCmd()

	var registered []string
	for _, c := range root.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		registered = append(registered, c.Name())
	}

	catalog := commands.CatalogCommandNames()
	sort.Strings(registered)
	sort.Strings(catalog)
	assert.Equal(t, catalog, registered)
}
