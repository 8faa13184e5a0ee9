package commands

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitmate/recruitmate-cli/internal/account"
	"github.com/recruitmate/recruitmate-cli/internal/output"
)

func dashboardHandler(patches *[]map[string]any, deleted *bool) http.Handler {
	user := map[string]any{"id": 7, "username": "ada", "first_name": "Ada", "is_premium": true}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+account.DashboardPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, user)
	})
	mux.HandleFunc("PATCH "+account.DashboardPath, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		*patches = append(*patches, body)
		for k, v := range body {
			user[k] = v
		}
		writeJSON(w, http.StatusOK, user)
	})
	mux.HandleFunc("DELETE "+account.DashboardPath, func(w http.ResponseWriter, r *http.Request) {
		*deleted = true
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func TestMeShow(t *testing.T) {
	var patches []map[string]any
	var deleted bool
	env := newTestEnv(t, dashboardHandler(&patches, &deleted))
	env.store.SetTokens("access-1", "refresh-1")

	require.NoError(t, env.run(NewMeCmd()))

	envl := env.envelope(t)
	assert.Equal(t, "Ada (premium)", envl["summary"])
	assert.Equal(t, "ada", envl["data"].(map[string]any)["username"])
	require.NotNil(t, env.store.CachedUser())
	assert.True(t, env.store.CachedUser().IsPremium)
}

func TestMeUpdateSendsOnlyChangedFields(t *testing.T) {
	var patches []map[string]any
	var deleted bool
	env := newTestEnv(t, dashboardHandler(&patches, &deleted))
	env.store.SetTokens("access-1", "refresh-1")

	require.NoError(t, env.run(NewMeCmd(), "update", "--last-name", "Lovelace"))

	require.Len(t, patches, 1)
	assert.Equal(t, map[string]any{"last_name": "Lovelace"}, patches[0])
	assert.Equal(t, "Profile updated", env.envelope(t)["summary"])
	assert.Equal(t, "Lovelace", env.store.CachedUser().LastName)
}

func TestMeUpdateValidation(t *testing.T) {
	var patches []map[string]any
	var deleted bool
	env := newTestEnv(t, dashboardHandler(&patches, &deleted))
	env.store.SetTokens("access-1", "refresh-1")

	err := env.run(NewMeCmd(), "update")
	assert.Equal(t, output.CodeUsage, errCode(err))

	err = env.run(NewMeCmd(), "update", "--birth-date", "10/12/1990")
	assert.Equal(t, output.CodeValidation, errCode(err))
	assert.Empty(t, patches)
}

func TestMeDelete(t *testing.T) {
	var patches []map[string]any
	var deleted bool
	env := newTestEnv(t, dashboardHandler(&patches, &deleted))
	env.store.SetTokens("access-1", "refresh-1")

	err := env.run(NewMeCmd(), "delete")
	assert.Equal(t, output.CodeUsage, errCode(err))
	assert.False(t, deleted)

	require.NoError(t, env.run(NewMeCmd(), "delete", "--yes"))
	assert.True(t, deleted)
	assert.False(t, env.store.Authenticated())
	assert.Equal(t, "deleted", env.data(t)["status"])
}
