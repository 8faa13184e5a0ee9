// Package richtext reads CV and job-description text from disk and renders
// Markdown reports for the terminal.
package richtext

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// DefaultWidth is the word-wrap width when the terminal width is unknown.
const DefaultWidth = 80

// RenderMarkdown renders md for terminal display using glamour.
func RenderMarkdown(md string) (string, error) {
	return RenderMarkdownWithWidth(md, DefaultWidth)
}

// RenderMarkdownWithWidth renders md wrapped at width columns.
func RenderMarkdownWithWidth(md string, width int) (string, error) {
	return render(md, width, glamour.WithAutoStyle())
}

// RenderPlain renders md without colors, for non-TTY writers.
func RenderPlain(md string, width int) (string, error) {
	return render(md, width, glamour.WithStandardStyle("notty"))
}

func render(md string, width int, style glamour.TermRendererOption) (string, error) {
	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	if width <= 0 {
		width = DefaultWidth
	}

	r, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	out, err := r.Render(md)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}
