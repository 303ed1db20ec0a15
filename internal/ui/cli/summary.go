package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ftree/internal/core/ports"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Width(20)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)
)

func renderSummary(title string, s ports.Summary, failed []string) string {
	rows := []string{
		titleStyle.Render(title),
		row("files", s.Files),
		row("units", s.Units),
		row("compilation edges", s.CompilationEdges),
		row("execution edges", s.ExecutionEdges),
	}
	if s.Duration > 0 {
		rows = append(rows, labelStyle.Render("duration")+s.Duration.Round(time.Millisecond).String())
	}
	if len(failed) > 0 {
		rows = append(rows, warnStyle.Render(fmt.Sprintf("%d files failed to parse:", len(failed))))
		for _, f := range failed {
			rows = append(rows, "  "+f)
		}
	} else {
		rows = append(rows, successStyle.Render("all files parsed"))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func row(label string, value int) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}

func printSummary(w io.Writer, title string, s ports.Summary, failed []string) {
	fmt.Fprintln(w, renderSummary(title, s, failed))
}

// printList writes one item per line so the output stays pipeable.
func printList[T fmt.Stringer](w io.Writer, items []T) {
	for _, item := range items {
		fmt.Fprintln(w, item.String())
	}
}

func printStrings(w io.Writer, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, strings.Join(items, "\n"))
}

func printStatus(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, statusStyle.Render(fmt.Sprintf(format, args...)))
}
