package richtext

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = RenderMarkdown("  \n ")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = RenderMarkdown("## Strengths\n\n- Go\n- **Kubernetes**")
	require.NoError(t, err)
	plain := ansi.Strip(out)
	assert.Contains(t, plain, "Strengths")
	assert.Contains(t, plain, "Kubernetes")
}

func TestRenderPlainWraps(t *testing.T) {
	input := strings.Repeat("improve the summary section ", 12)

	narrow, err := RenderPlain(input, 40)
	require.NoError(t, err)
	wide, err := RenderPlain(input, 120)
	require.NoError(t, err)

	assert.Greater(t, strings.Count(narrow, "\n"), strings.Count(wide, "\n"))
	assert.Equal(t, narrow, ansi.Strip(narrow), "plain output carries no escapes")
}

func TestNormalize(t *testing.T) {
	got, err := Normalize([]byte("\xEF\xBB\xBF  line one\r\nline two\rCafé  "))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\nCafé", got)

	_, err = Normalize([]byte("PK\x03\x04\x00\x00"))
	assert.Error(t, err)
}

func TestReadText(t *testing.T) {
	dir := t.TempDir()

	cv := filepath.Join(dir, "cv.md")
	require.NoError(t, os.WriteFile(cv, []byte("# Ada\r\nAnalyst\r\n"), 0600))
	got, err := ReadText(cv, nil)
	require.NoError(t, err)
	assert.Equal(t, "# Ada\nAnalyst", got)

	noExt := filepath.Join(dir, "job")
	require.NoError(t, os.WriteFile(noExt, []byte("Backend engineer wanted"), 0600))
	got, err = ReadText(noExt, nil)
	require.NoError(t, err)
	assert.Equal(t, "Backend engineer wanted", got)

	pdf := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.7\n\x00\x01binary"), 0600))
	_, err = ReadText(pdf, nil)
	assert.Error(t, err)

	_, err = ReadText(filepath.Join(dir, "missing.txt"), nil)
	assert.Error(t, err)

	_, err = ReadText(dir, nil)
	assert.ErrorContains(t, err, "not a regular file")
}

func TestReadTextStdin(t *testing.T) {
	got, err := ReadText("-", strings.NewReader("pasted CV\n"))
	require.NoError(t, err)
	assert.Equal(t, "pasted CV", got)

	_, err = ReadText("-", strings.NewReader(strings.Repeat("x", MaxInputSize+1)))
	assert.ErrorContains(t, err, "maximum size")
}
