// Package display renders reconciled pages and session chrome for the
// terminal.
package display

import (
	"fmt"
	"strings"

	"weft/internal/config"
	"weft/internal/reconcile"

	"github.com/charmbracelet/lipgloss"
)

// Renderer styles pipeline output for the terminal. With color disabled it
// degrades to plain text, which also keeps `weft dump` pipe-friendly.
type Renderer struct {
	width int
	color bool

	titleStyle  lipgloss.Style
	frameStyle  lipgloss.Style
	statusStyle lipgloss.Style
	refStyle    lipgloss.Style
	helpStyle   lipgloss.Style
}

func NewRenderer(cfg config.DisplayConfig) *Renderer {
	return &Renderer{
		width: cfg.GetWidth(),
		color: cfg.UseColor(),
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF")),
		frameStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1),
		statusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")),
		refStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F2C94C")),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")),
	}
}

// Page renders the reconciled text with a header line and a status footer.
func (r *Renderer) Page(page *reconcile.RenderedPage) string {
	var b strings.Builder

	header := page.Title
	if header == "" {
		header = page.URL
	}
	if r.color {
		b.WriteString(r.titleStyle.Render(header))
	} else {
		b.WriteString(header)
	}
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", min(r.width, 80)))
	b.WriteString("\n")

	for _, line := range page.Text {
		b.WriteString(line)
		b.WriteString("\n")
	}

	status := fmt.Sprintf("%s · %d interactive elements", page.URL, len(page.Mapping))
	if r.color {
		status = r.statusStyle.Render(status)
	}
	b.WriteString("\n")
	b.WriteString(status)
	b.WriteString("\n")
	return b.String()
}

// Links renders the mapping as a numbered listing, the `l` command.
func (r *Renderer) Links(mapping reconcile.Mapping) string {
	if len(mapping) == 0 {
		return "no interactive elements on this page\n"
	}

	var b strings.Builder
	for _, entry := range mapping {
		ref := fmt.Sprintf("[%d]", entry.Ref)
		if r.color {
			ref = r.refStyle.Render(ref)
		}
		text := entry.Text
		if text == "" {
			text = entry.Target
		}
		fmt.Fprintf(&b, "%s %-8s %-8s %s\n", ref, entry.Action, entry.Kind, text)
	}
	return b.String()
}

// Help renders the interactive command summary.
func (r *Renderer) Help() string {
	help := `Commands:
  <number>         act on element (navigate, click, submit)
  <number> <text>  fill an input with text
  <url>            open a URL
  l                list interactive elements
  b / f            history back / forward
  r                re-render the current page
  h                this help
  q                quit`
	if r.color {
		return r.helpStyle.Render(help) + "\n"
	}
	return help + "\n"
}

// Frame wraps content in a bordered box, used for errors and notices.
func (r *Renderer) Frame(content string) string {
	if !r.color {
		return content + "\n"
	}
	return r.frameStyle.Width(min(r.width, 80)).Render(content) + "\n"
}
