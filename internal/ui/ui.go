// Package ui renders query results, filter decisions, and diagnostics for
// the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/steveyegge/taskql/internal/cache"
	"github.com/steveyegge/taskql/internal/engine"
	"github.com/steveyegge/taskql/internal/globalfilter"
	"github.com/steveyegge/taskql/internal/query"
	"github.com/steveyegge/taskql/internal/task"
)

// Palette
var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorMuted   = lipgloss.Color("#6C7A80")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorSuccess = lipgloss.Color("#2CD7C7")
)

const defaultWidth = 80

// Renderer styles output for one writer.
type Renderer struct {
	w     io.Writer
	width int

	heading lipgloss.Style
	muted   lipgloss.Style
	tag     lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	success lipgloss.Style
	done    lipgloss.Style
}

// NewRenderer creates a renderer for w. color is "auto" (color only on a
// terminal), "always", or "never".
func NewRenderer(w io.Writer, color string) *Renderer {
	lr := lipgloss.NewRenderer(w)

	tty, width := terminal(w)
	switch {
	case color == "never", color == "auto" && !tty:
		lr.SetColorProfile(termenv.Ascii)
	case color == "always" && !tty:
		lr.SetColorProfile(termenv.ANSI256)
	}

	return &Renderer{
		w:       w,
		width:   width,
		heading: lr.NewStyle().Bold(true).Foreground(colorAccent),
		muted:   lr.NewStyle().Foreground(colorMuted),
		tag:     lr.NewStyle().Foreground(colorAccent),
		warning: lr.NewStyle().Foreground(colorWarning),
		err:     lr.NewStyle().Bold(true).Foreground(colorError),
		success: lr.NewStyle().Foreground(colorSuccess),
		done:    lr.NewStyle().Strikethrough(true).Foreground(colorMuted),
	}
}

// terminal reports whether w is a terminal and its width.
func terminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return true, defaultWidth
	}
	return true, width
}

// Result writes a query result: explanation first, then tasks (by group
// when grouped), then a summary line.
func (r *Renderer) Result(res *engine.Result) {
	if res.Explanation != "" {
		fmt.Fprintln(r.w, res.Explanation)
	}

	if res.Groups != nil {
		for i, g := range res.Groups {
			if i > 0 {
				fmt.Fprintln(r.w)
			}
			fmt.Fprintf(r.w, "%s %s\n", r.heading.Render(g.Key), r.muted.Render(fmt.Sprintf("(%d)", len(g.Tasks))))
			for _, t := range g.Tasks {
				fmt.Fprintln(r.w, r.taskLine(t))
			}
		}
	} else {
		for _, t := range res.Tasks {
			fmt.Fprintln(r.w, r.taskLine(t))
		}
	}

	fmt.Fprintln(r.w, r.muted.Render(Summary(res)))
}

// Summary describes a result in one line, e.g.
// "2 of 5 tasks (1.20ms, cached)".
func Summary(res *engine.Result) string {
	noun := "tasks"
	if res.TotalCount == 1 {
		noun = "task"
	}

	var sb strings.Builder
	if len(res.Tasks) == res.TotalCount {
		fmt.Fprintf(&sb, "%d %s", res.TotalCount, noun)
	} else {
		fmt.Fprintf(&sb, "%d of %d %s", len(res.Tasks), res.TotalCount, noun)
	}
	fmt.Fprintf(&sb, " (%.2fms", res.ExecutionTimeMs)
	if res.Cached {
		sb.WriteString(", cached")
	}
	sb.WriteString(")")
	return sb.String()
}

func (r *Renderer) taskLine(t *task.Task) string {
	title := t.Title
	if t.IsDone() {
		title = r.done.Render(title)
	}
	line := fmt.Sprintf("- [%s] %s", checkbox(t), title)

	var meta []string
	for _, field := range []task.DateField{task.DateDue, task.DateScheduled, task.DateStart} {
		if d := t.Date(field); d != nil {
			meta = append(meta, fmt.Sprintf("%s %s", field, d.Format("2006-01-02")))
		}
	}
	if t.Priority != nil && *t.Priority != task.PriorityNormal {
		meta = append(meta, "priority "+t.Priority.String())
	}
	if t.Frequency.IsRecurring() {
		meta = append(meta, "recurring")
	}
	if len(meta) > 0 {
		line += "  " + r.muted.Render(strings.Join(meta, ", "))
	}

	for _, tag := range t.Tags {
		line += " " + r.tag.Render(tag)
	}
	if t.HasPath() {
		line += "  " + r.muted.Render(t.SlashPath())
	}
	return line
}

// checkbox returns the symbol shown between the brackets.
func checkbox(t *task.Task) string {
	switch t.StatusType() {
	case task.StatusInProgress:
		return "/"
	case task.StatusDone:
		return "x"
	case task.StatusCancelled:
		return "-"
	default:
		return " "
	}
}

// ParseError writes a caret diagnostic for err.
func (r *Renderer) ParseError(err *query.ParseError) {
	diag := strings.TrimRight(err.Diagnostic(), "\n")
	first, rest, _ := strings.Cut(diag, "\n")
	fmt.Fprintln(r.w, r.err.Render(first))
	fmt.Fprintln(r.w, rest)
}

// Error writes a generic error line.
func (r *Renderer) Error(err error) {
	fmt.Fprintln(r.w, r.err.Render("Error:"), err.Error())
}

// Warning writes a warning line.
func (r *Renderer) Warning(msg string) {
	fmt.Fprintln(r.w, r.warning.Render("Warning:"), msg)
}

// Decision writes a global filter decision.
func (r *Renderer) Decision(d globalfilter.Decision) {
	verdict := r.success.Render("included")
	if !d.Included {
		verdict = r.err.Render("excluded")
	}
	fmt.Fprintf(r.w, "%s: %s\n", verdict, d.Reason)
	if d.MatchedRule != nil {
		fmt.Fprintf(r.w, "  %s %s\n", r.muted.Render("rule:"), fmt.Sprintf("%s %s", d.MatchedRule.Type, d.MatchedRule.Pattern))
	}
}

// CacheMetrics writes cache counters.
func (r *Renderer) CacheMetrics(name string, m cache.Metrics) {
	fmt.Fprintln(r.w, r.heading.Render("Cache "+name))
	rows := [][2]string{
		{"entries", fmt.Sprint(m.Size)},
		{"hits", fmt.Sprint(m.Hits)},
		{"misses", fmt.Sprint(m.Misses)},
		{"evictions", fmt.Sprint(m.Evictions)},
		{"expirations", fmt.Sprint(m.Expirations)},
		{"hit rate", fmt.Sprintf("%.1f%%", m.HitRate()*100)},
	}
	for _, row := range rows {
		fmt.Fprintf(r.w, "  %-12s %s\n", row[0]+":", row[1])
	}
}

// Rule writes a horizontal rule across the terminal width.
func (r *Renderer) Rule() {
	fmt.Fprintln(r.w, r.muted.Render(strings.Repeat("─", r.width)))
}
