package output

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/termenv"
)

// Colors for styled output.
const (
	colorAccent = "#7C3AED"
	colorMuted  = "#6B7280"
	colorText   = "#E5E7EB"
	colorError  = "#EF4444"
)

const (
	maxCellWidth = 40
	defaultWidth = 80
	otherRank    = 50
)

// Display rank of known keys; lower comes first. Unknown keys rank last
// and sort by name.
var keyRank = map[string]int{
	"index":            1,
	"id":               1,
	"username":         2,
	"job":              2,
	"job_requirement":  2,
	"skill":            2,
	"full_name":        3,
	"email":            3,
	"status":           3,
	"overall_status":   3,
	"score":            4,
	"overall_score":    4,
	"score_percentage": 4,
	"cv_match":         5,
	"is_premium":       5,
	"cv_section":       6,
	"deep":             6,
	"at":               7,
	"birth_date":       8,
	"date_joined":      8,
}

var keyLabels = map[string]string{
	"score_percentage": "Score",
	"overall_score":    "Score",
	"cv_match":         "CV Match",
	"cv_section":       "CV Section",
	"is_premium":       "Premium",
	"at":               "When",
}

var (
	percentKeys = map[string]bool{"score": true, "overall_score": true, "score_percentage": true}
	mutedKeys   = map[string]bool{"index": true, "id": true, "at": true, "date_joined": true}
	dateKeys    = map[string]bool{"at": true, "birth_date": true, "date_joined": true}

	// Keyword arrays fit in one cell; other arrays are left out of tables.
	listKeys = map[string]bool{"missing_keywords": true, "unaddressed_requirements": true}

	// Long text that never fits a row or a field line.
	longTextKeys = map[string]bool{"ai_report": true, "content": true, "cv_text": true, "job_description": true}
)

// view is the format-neutral layout of a response body. Exactly one of
// text, placeholder, grid, fields or items is set.
type view struct {
	text        string
	placeholder string
	grid        *grid
	fields      []field
	items       []string
}

type grid struct {
	cols []column
	rows []map[string]any
}

type column struct {
	key   string
	label string
	muted bool
}

type field struct {
	label string
	value string
	muted bool
}

func layout(data any) view {
	switch d := data.(type) {
	case nil:
		return view{placeholder: "no data"}
	case string:
		return view{text: d}
	case []map[string]any:
		if len(d) == 0 {
			return view{placeholder: "no results"}
		}
		return view{grid: &grid{cols: columnsOf(d[0]), rows: d}}
	case map[string]any:
		fields := fieldsOf(d)
		if len(fields) == 0 {
			return view{placeholder: "no data"}
		}
		return view{fields: fields}
	case []any:
		if len(d) == 0 {
			return view{placeholder: "no results"}
		}
		items := make([]string, len(d))
		for i, item := range d {
			items[i] = formatCell(item)
		}
		return view{items: items}
	default:
		return view{text: fmt.Sprint(d)}
	}
}

func rankedKeys(m map[string]any, keep func(key string, val any) bool) []string {
	var keys []string
	for k, v := range m {
		if keep(k, v) {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b string) int {
		return cmp.Or(cmp.Compare(rank(a), rank(b)), cmp.Compare(a, b))
	})
	return keys
}

func rank(key string) int {
	if r, ok := keyRank[key]; ok {
		return r
	}
	return otherRank
}

func columnsOf(row map[string]any) []column {
	keys := rankedKeys(row, func(k string, v any) bool {
		if longTextKeys[k] {
			return false
		}
		switch v.(type) {
		case map[string]any, []map[string]any:
			return false
		case []any:
			return listKeys[k]
		}
		return true
	})
	cols := make([]column, len(keys))
	for i, k := range keys {
		cols[i] = column{key: k, label: formatHeader(k), muted: mutedKeys[k]}
	}
	return cols
}

func fieldsOf(m map[string]any) []field {
	keys := rankedKeys(m, func(k string, v any) bool {
		if longTextKeys[k] {
			return false
		}
		switch v.(type) {
		case map[string]any, []map[string]any:
			return false
		}
		return true
	})
	fields := make([]field, len(keys))
	for i, k := range keys {
		fields[i] = field{label: formatHeader(k), value: formatValue(k, m[k]), muted: mutedKeys[k]}
	}
	return fields
}

// renderer writes a Response for people, either styled for a terminal or
// as literal Markdown.
type renderer struct {
	markdown bool
	width    int

	accent lipgloss.Style
	muted  lipgloss.Style
	text   lipgloss.Style
	err    lipgloss.Style
	hint   lipgloss.Style
	header lipgloss.Style
}

// newRenderer creates a renderer for w. Styled output drops colour when
// NO_COLOR is set.
func newRenderer(w io.Writer, markdown bool) *renderer {
	plain := lipgloss.NewStyle()
	r := &renderer{
		markdown: markdown,
		width:    terminalWidth(w),
		accent:   plain,
		muted:    plain,
		text:     plain,
		err:      plain,
		hint:     plain,
		header:   plain,
	}
	if markdown {
		return r
	}

	if os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return r
	}
	lipgloss.SetColorProfile(termenv.TrueColor)
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	r.accent = fg(colorAccent).Bold(true)
	r.muted = fg(colorMuted)
	r.text = fg(colorText)
	r.err = fg(colorError).Bold(true)
	r.hint = fg(colorMuted).Italic(true)
	r.header = fg(colorText).Bold(true)
	return r
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(f.Fd()); err == nil && width >= maxCellWidth {
			return width
		}
	}
	return defaultWidth
}

// RenderResponse writes resp.
func (r *renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder
	v := layout(NormalizeData(resp.Data))
	stats := extractStats(resp.Meta)

	if r.markdown {
		if resp.Summary != "" {
			b.WriteString("## " + resp.Summary + "\n\n")
		}
		r.markdownBody(&b, v)
		if len(resp.Breadcrumbs) > 0 {
			b.WriteString("\n### Next\n\n")
			for _, bc := range resp.Breadcrumbs {
				b.WriteString("- `" + bc.Cmd + "`")
				if bc.Description != "" {
					b.WriteString(": " + bc.Description)
				}
				b.WriteString("\n")
			}
		}
		if parts := statParts(stats); parts != "" {
			b.WriteString("\n*Stats: " + parts + "*\n")
		}
	} else {
		if resp.Summary != "" {
			b.WriteString(r.accent.Render(resp.Summary) + "\n\n")
		}
		r.styledBody(&b, v)
		if len(resp.Breadcrumbs) > 0 {
			b.WriteString("\n" + r.muted.Render("Next:") + "\n")
			for _, bc := range resp.Breadcrumbs {
				line := "  " + bc.Cmd
				if bc.Description != "" {
					line += "  # " + bc.Description
				}
				b.WriteString(r.muted.Render(line) + "\n")
			}
		}
		if parts := statParts(stats); parts != "" {
			b.WriteString("\n" + r.muted.Render("Stats: "+parts) + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError writes resp.
func (r *renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var out string
	if r.markdown {
		out = "**Error:** " + resp.Error + "\n"
		if resp.Hint != "" {
			out += "\n*Hint: " + resp.Hint + "*\n"
		}
	} else {
		out = r.err.Render("Error: "+resp.Error) + "\n"
		if resp.Hint != "" {
			out += r.hint.Render("Hint: "+resp.Hint) + "\n"
		}
	}
	_, err := io.WriteString(w, out)
	return err
}

func (r *renderer) styledBody(b *strings.Builder, v view) {
	switch {
	case v.placeholder != "":
		b.WriteString(r.muted.Render("("+v.placeholder+")") + "\n")
	case v.grid != nil:
		r.styledTable(b, v.grid)
	case v.fields != nil:
		width := 0
		for _, f := range v.fields {
			width = max(width, len(f.label))
		}
		for _, f := range v.fields {
			value := r.text
			if f.muted {
				value = r.muted
			}
			b.WriteString(r.muted.Render(fmt.Sprintf("%-*s: ", width, f.label)) + value.Render(f.value) + "\n")
		}
	case v.items != nil:
		for _, item := range v.items {
			b.WriteString(r.text.Render("• "+item) + "\n")
		}
	default:
		b.WriteString(r.text.Render(v.text) + "\n")
	}
}

func (r *renderer) styledTable(b *strings.Builder, g *grid) {
	cols := fitColumns(g, r.width)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return r.header
			case cols[col].muted:
				return r.muted
			}
			return r.text
		})

	labels := make([]string, len(cols))
	for i, c := range cols {
		labels[i] = c.label
	}
	t.Headers(labels...)
	for _, row := range g.rows {
		t.Row(cells(row, cols)...)
	}
	b.WriteString(t.String() + "\n")
}

// fitColumns drops the lowest ranked columns until the table fits width.
// The first column always stays.
func fitColumns(g *grid, width int) []column {
	const gap = 2
	total := 0
	widths := make([]int, len(g.cols))
	for i, c := range g.cols {
		widths[i] = lipgloss.Width(c.label)
		for _, row := range g.rows {
			widths[i] = max(widths[i], lipgloss.Width(formatValue(c.key, row[c.key])))
		}
		total += min(widths[i], maxCellWidth) + gap
	}

	n := len(g.cols)
	for n > 1 && total > width {
		n--
		total -= min(widths[n], maxCellWidth) + gap
	}
	return g.cols[:n]
}

func (r *renderer) markdownBody(b *strings.Builder, v view) {
	switch {
	case v.placeholder != "":
		b.WriteString("*" + strings.ToUpper(v.placeholder[:1]) + v.placeholder[1:] + "*\n")
	case v.grid != nil:
		labels := make([]string, len(v.grid.cols))
		for i, c := range v.grid.cols {
			labels[i] = c.label
		}
		b.WriteString("| " + strings.Join(labels, " | ") + " |\n")
		b.WriteString("|" + strings.Repeat(" --- |", len(labels)) + "\n")
		for _, row := range v.grid.rows {
			cs := cells(row, v.grid.cols)
			for i := range cs {
				cs[i] = strings.ReplaceAll(cs[i], "|", `\|`)
			}
			b.WriteString("| " + strings.Join(cs, " | ") + " |\n")
		}
	case v.fields != nil:
		for _, f := range v.fields {
			b.WriteString("- **" + f.label + ":** " + f.value + "\n")
		}
	case v.items != nil:
		for _, item := range v.items {
			b.WriteString("- " + item + "\n")
		}
	default:
		b.WriteString(v.text + "\n")
	}
}

func cells(row map[string]any, cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = formatValue(c.key, row[c.key])
	}
	return out
}

func formatHeader(key string) string {
	if label, ok := keyLabels[key]; ok {
		return label
	}
	key = strings.TrimSuffix(strings.TrimSuffix(key, "_at"), "_on")
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// formatValue formats a value for the column or field named key.
func formatValue(key string, val any) string {
	if val == nil {
		return ""
	}
	if percentKeys[key] {
		return formatCell(val) + "%"
	}
	if s, ok := val.(string); ok && dateKeys[key] {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Local().Format("2006-01-02 15:04")
		}
	}
	return formatCell(val)
}

func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return ansi.Truncate(v, maxCellWidth, "...")
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				parts = append(parts, itemName(m))
				continue
			}
			parts = append(parts, formatCell(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

// itemName names a nested object in a list cell.
func itemName(m map[string]any) string {
	for _, k := range []string{"job_requirement", "skill", "username", "id"} {
		if v, ok := m[k]; ok {
			return formatCell(v)
		}
	}
	return "…"
}

// StatsFormatter renders session statistics as short fragments.
type StatsFormatter interface {
	FormatParts() []string
}

func extractStats(meta map[string]any) StatsFormatter {
	stats, _ := meta["stats"].(StatsFormatter)
	return stats
}

func statParts(stats StatsFormatter) string {
	if stats == nil {
		return ""
	}
	return strings.Join(stats.FormatParts(), " | ")
}
