package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sbtinstruments/cyto/internal/tui/styles"
	"github.com/sbtinstruments/cyto/internal/util"
)

// View renders the watcher
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString(m.renderHelp())

	return b.String()
}

func (m Model) renderHeader() string {
	title := fmt.Sprintf("cyto watch: %s", m.treeID)
	if m.published {
		title += fmt.Sprintf("  (%d nodes, published %s ago)",
			m.snapshot.Len(), ageOf(m.snapshot.Taken))
	}
	return styles.Header.Width(max(0, m.width-2)).Render(util.TruncateANSI(title, max(4, m.width-2)))
}

// renderOutline builds the viewport content, one line per node.
func (m Model) renderOutline() string {
	if m.fetchErr != nil {
		return styles.ErrorMsg.Render(fmt.Sprintf("store unavailable: %v", m.fetchErr))
	}
	if !m.published {
		return styles.Muted.Render("No outline published yet for this tree.")
	}

	rows := m.rows()
	lines := make([]string, 0, len(rows))
	for i, r := range rows {
		icon := lipgloss.NewStyle().
			Foreground(styles.StateColor(r.rec.State)).
			Render(styles.StateIcon(r.rec.State))

		line := fmt.Sprintf("%s%s %s [%s]",
			strings.Repeat("  ", r.depth), icon, r.rec.Label, r.rec.State)
		line = util.TruncateANSI(line, max(4, m.width-4))

		if i == m.selected {
			line = styles.RowSelected.Render(line)
		} else {
			line = styles.Row.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatus() string {
	if m.notice == "" {
		return ""
	}
	return styles.StatusBar.Render(m.notice) + "\n"
}

func (m Model) renderHelp() string {
	keys := []struct{ key, desc string }{
		{"↑/↓", "select"},
		{"c", "cancel node"},
		{"r", "refresh"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, styles.HelpKey.Render(k.key)+" "+k.desc)
	}
	return styles.HelpBar.Render(strings.Join(parts, "  •  "))
}

// ageOf formats how long ago t was, coarsely.
func ageOf(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Second:
		return "<1s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
