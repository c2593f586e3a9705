package tui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/hookwatch/internal/model"
)

const bullet = "• "

var (
	colorAccent = lipgloss.Color("39")
	colorDim    = lipgloss.Color("240")

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	itemStyle    = lipgloss.NewStyle()
	statusStyle  = lipgloss.NewStyle().Foreground(colorDim)
)

// RenderEvents renders the heading followed by one bullet per event, in the
// order given. Events are shown as plain text; control characters are dropped
// so a message can never drive the terminal. A width of 0 disables wrapping.
func RenderEvents(events []string, width int) string {
	var b strings.Builder
	b.WriteString(renderHeading(width))
	b.WriteString("\n")
	if list := renderList(events, width); list != "" {
		b.WriteString("\n")
		b.WriteString(list)
	}
	return b.String()
}

func renderHeading(width int) string {
	style := headingStyle
	if width > 0 {
		style = style.MaxWidth(width)
	}
	return style.Render(model.FeedHeading)
}

func renderList(events []string, width int) string {
	if len(events) == 0 {
		return ""
	}

	style := itemStyle
	indent := lipgloss.Width(bullet)
	if width > indent {
		style = style.Width(width - indent)
	}

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, bullet, style.Render(sanitize(ev))))
	}
	return strings.Join(lines, "\n")
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}
