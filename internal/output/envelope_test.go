package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type skill struct {
	Skill           string  `json:"skill"`
	ScorePercentage float64 `json:"score_percentage"`
}

type fakeStats []string

func (s fakeStats) FormatParts() []string { return s }

func newTestWriter(format Format) (*Writer, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Options{Format: format, Writer: &buf}), &buf
}

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{
		"":         FormatAuto,
		"json":     FormatJSON,
		"JSON":     FormatJSON,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
		"styled":   FormatStyled,
		"yaml":     FormatYAML,
		"quiet":    FormatQuiet,
	} {
		got, err := ParseFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseFormat("xml")
	require.Error(t, err)
	assert.Equal(t, CodeUsage, AsError(err).Code)
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "yaml", FormatYAML.String())
	assert.Equal(t, "auto", FormatAuto.String())
}

func TestWriterAutoFallsBackToJSON(t *testing.T) {
	w, buf := newTestWriter(FormatAuto)
	require.NoError(t, w.OK(map[string]any{"username": "ada"}, WithSummary("Signed in")))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "Signed in", resp.Summary)
	assert.Equal(t, map[string]any{"username": "ada"}, resp.Data)
}

func TestWriterErrEnvelope(t *testing.T) {
	w, buf := newTestWriter(FormatJSON)
	require.NoError(t, w.Err(ErrValidation("cv_text", "CV must be at least 50 characters")))

	assert.JSONEq(t, `{
		"ok": false,
		"error": "CV must be at least 50 characters",
		"code": "validation",
		"fields": {"cv_text": ["CV must be at least 50 characters"]}
	}`, buf.String())
}

func TestWriterQuiet(t *testing.T) {
	w, buf := newTestWriter(FormatQuiet)
	require.NoError(t, w.OK("eyJhbGciOi"))
	assert.Equal(t, "eyJhbGciOi\n", buf.String())

	buf.Reset()
	require.NoError(t, w.OK(map[string]int{"remaining": 3}))
	assert.JSONEq(t, `{"remaining":3}`, buf.String())
}

func TestWriterYAML(t *testing.T) {
	w, buf := newTestWriter(FormatYAML)
	require.NoError(t, w.OK([]skill{{Skill: "Go", ScorePercentage: 91.5}}, WithSummary("1 match")))

	out := buf.String()
	assert.Contains(t, out, "ok: true")
	assert.Contains(t, out, "summary: 1 match")
	assert.Contains(t, out, "- score_percentage: 91.5")
	assert.Contains(t, out, "skill: Go")
	assert.NotContains(t, out, "breadcrumbs")
}

func TestWriterJQ(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf, JQ: ".[] | select(.score_percentage > 50) | .skill"})

	data := []skill{{"Go", 91.5}, {"Rust", 12}, {"SQL", 70}}
	require.NoError(t, w.OK(data, WithSummary("ignored")))
	assert.Equal(t, "\"Go\"\n\"SQL\"\n", buf.String())
}

func TestWriterJQRawMessage(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Writer: &buf, JQ: ".overall_score"})
	require.NoError(t, w.OK(json.RawMessage(`{"overall_score":78}`)))
	assert.Equal(t, "78\n", buf.String())
}

func TestWriterJQInvalid(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Writer: &buf, JQ: ".[ | bad"})
	err := w.OK([]int{1})
	require.Error(t, err)
	assert.Equal(t, CodeUsage, AsError(err).Code)
	assert.Empty(t, buf.String())
}

func TestWriterJQRuntimeError(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Writer: &buf, JQ: ".foo"})
	err := w.OK([]int{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--jq")
}

func TestWriterMarkdown(t *testing.T) {
	w, buf := newTestWriter(FormatMarkdown)
	err := w.OK(
		[]skill{{"Go", 91.5}, {"C|C++", 40}},
		WithSummary("Top matches"),
		WithBreadcrumbs(Breadcrumb{Action: "save", Cmd: "recruitmate match scan --save", Description: "Keep this scan"}),
		WithStats(fakeStats{"2 requests", "1 retries"}),
	)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "## Top matches\n"))
	assert.Contains(t, out, "| Skill | Score |")
	assert.Contains(t, out, "| --- | --- |")
	assert.Contains(t, out, "| Go | 91.5% |")
	assert.Contains(t, out, `C\|C++`)
	assert.Contains(t, out, "- `recruitmate match scan --save`: Keep this scan")
	assert.Contains(t, out, "*Stats: 2 requests | 1 retries*")
}

func TestWriterMarkdownError(t *testing.T) {
	w, buf := newTestWriter(FormatMarkdown)
	require.NoError(t, w.Err(ErrAuth("Session expired")))
	assert.Equal(t, "**Error:** Session expired\n\n*Hint: Run: recruitmate auth login*\n", buf.String())
}

func TestWriterStyledPlainObject(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	w, buf := newTestWriter(FormatStyled)
	require.NoError(t, w.OK(map[string]any{
		"username":   "ada",
		"is_premium": true,
		"ai_report":  "## long report",
	}, WithSummary("Profile")))

	out := buf.String()
	assert.Contains(t, out, "Profile\n\n")
	assert.Contains(t, out, "Username: ada")
	assert.Contains(t, out, "Premium : yes")
	assert.NotContains(t, out, "long report")
}

func TestNormalizeData(t *testing.T) {
	got := NormalizeData([]skill{{"Go", 1}})
	maps, ok := got.([]map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Go", maps[0]["skill"])

	assert.Equal(t, []map[string]any{}, NormalizeData(json.RawMessage(`[]`)))
	assert.Equal(t, []any{"a", 1.0}, NormalizeData(json.RawMessage(`["a",1]`)))
	assert.Nil(t, NormalizeData(nil))
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", formatCell(nil))
	assert.Equal(t, "yes", formatCell(true))
	assert.Equal(t, "42", formatCell(42.0))
	assert.Equal(t, "0.65", formatCell(0.65))
	assert.Equal(t, "python, docker", formatCell([]any{"python", "docker"}))
	assert.Equal(t, "Go, ada", formatCell([]any{map[string]any{"skill": "Go"}, map[string]any{"username": "ada"}}))
	assert.Equal(t, strings.Repeat("x", 37)+"...", formatCell(strings.Repeat("x", 60)))
}

func TestFormatHeader(t *testing.T) {
	assert.Equal(t, "Missing Keywords", formatHeader("missing_keywords"))
	assert.Equal(t, "Expires", formatHeader("expires_at"))
}
