package cmd

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/lectern-ai/lectern/internal/pipeline"
)

const renderWidth = 100

// styles holds the lipgloss styles used by ask and chat output.
type styles struct {
	Title     lipgloss.Style
	Prompt    lipgloss.Style
	Assistant lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// markdownRenderer converts markdown answers to styled terminal output,
// falling back to plain text when glamour cannot initialize.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
}

func newMarkdownRenderer() *markdownRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{renderer: r}
}

// Render returns the styled form of markdown, or the input unchanged when
// rendering is unavailable or fails.
func (m *markdownRenderer) Render(markdown string) string {
	if m == nil || m.renderer == nil {
		return markdown
	}
	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimSuffix(rendered, "\n")
}

// renderSources formats the source attributions under an answer. Returns ""
// when there are none.
func renderSources(st styles, sources []pipeline.Source) string {
	if len(sources) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(st.Muted.Render("Sources:"))
	b.WriteString("\n")
	for i, src := range sources {
		line := fmt.Sprintf("  %d. %s", i+1, src.Text)
		if src.Link != "" {
			line += " (" + src.Link + ")"
		}
		b.WriteString(st.Muted.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}
