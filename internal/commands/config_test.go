package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitmate/recruitmate-cli/internal/config"
	"github.com/recruitmate/recruitmate-cli/internal/output"
	"github.com/recruitmate/recruitmate-cli/internal/ratelimit"
)

func readGlobalConfig(t *testing.T) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(config.GlobalConfigPath())
	require.NoError(t, err)
	var data map[string]any
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}

func TestConfigSetAndUnset(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	env := newTestEnv(t, http.NotFoundHandler())

	require.NoError(t, env.run(NewConfigCmd(), "set", "alpha", "0.5"))
	require.NoError(t, env.run(NewConfigCmd(), "set", "base_url", "api.example.com/"))
	require.NoError(t, env.run(NewConfigCmd(), "set", "stats", "yes"))

	data := readGlobalConfig(t)
	assert.InDelta(t, 0.5, data["alpha"], 1e-9)
	assert.Equal(t, "https://api.example.com", data["base_url"])
	assert.Equal(t, true, data["stats"])

	info, err := os.Stat(config.GlobalConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	env.stdout.Reset()
	require.NoError(t, env.run(NewConfigCmd(), "unset", "alpha"))
	assert.Equal(t, "unset", env.data(t)["status"])
	assert.NotContains(t, readGlobalConfig(t), "alpha")

	env.stdout.Reset()
	require.NoError(t, env.run(NewConfigCmd(), "unset", "alpha"))
	assert.Equal(t, "not_set", env.data(t)["status"])
}

func TestConfigSetRejectsBadValues(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	env := newTestEnv(t, http.NotFoundHandler())

	tests := [][]string{
		{"set", "project_id", "1"},
		{"set", "alpha", "1.5"},
		{"set", "verbose", "3"},
		{"set", "timeout_seconds", "0"},
		{"set", "format", "xml"},
		{"set", "stats", "maybe"},
	}
	for _, args := range tests {
		err := env.run(NewConfigCmd(), args...)
		assert.Equal(t, output.CodeUsage, errCode(err), "%v", args)
	}
	_, err := os.Stat(config.GlobalConfigPath())
	assert.True(t, os.IsNotExist(err))
}

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		key, raw string
		want     any
	}{
		{"timeout_seconds", "45", 45},
		{"backoff_base_ms", "250", 250},
		{"verbose", "2", 2},
		{"alpha", "0", 0.0},
		{"stats", "off", false},
		{"format", "yaml", "yaml"},
		{"base_url", "localhost:8000", "http://localhost:8000"},
		{"cache_dir", "/tmp/rm", "/tmp/rm"},
	}
	for _, tt := range tests {
		got, err := parseConfigValue(tt.key, tt.raw)
		require.NoError(t, err, tt.key)
		assert.Equal(t, tt.want, got, tt.key)
	}
}

func TestConfigShow(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	require.NoError(t, env.run(NewConfigCmd()))
	entries := env.envelope(t)["data"].([]any)
	require.Len(t, entries, len(config.Keys))
	first := entries[0].(map[string]any)
	assert.Equal(t, "base_url", first["key"])
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	env := newTestEnv(t, http.NotFoundHandler())

	require.NoError(t, env.run(NewConfigCmd(), "path"))
	data := env.data(t)
	assert.Equal(t, "/tmp/xdg/recruitmate/config.json", data["config"])
	assert.Equal(t, env.app.History.Path(), data["history"])
}

func TestLimits(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	require.NoError(t, env.run(NewLimitsCmd()))
	envl := env.envelope(t)
	assert.Equal(t, "No rate limit in effect", envl["summary"])

	env.app.Tracker.Publish(&ratelimit.Info{Limit: 100, Remaining: 0, RetryAfter: 30})
	env.stdout.Reset()
	require.NoError(t, env.run(NewLimitsCmd()))
	data := env.data(t)
	assert.Equal(t, true, data["limited"])
	assert.Equal(t, "Rate limited. Please wait 30 seconds.", data["message"])
	assert.NotNil(t, env.app.Recorder.Snapshot())

	env.stdout.Reset()
	require.NoError(t, env.run(NewLimitsCmd(), "reset"))
	assert.Nil(t, env.app.Tracker.Current())
	assert.Nil(t, env.app.Recorder.Snapshot())
}

func TestVersionWithoutApp(t *testing.T) {
	cmd := NewVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "recruitmate version")
}
