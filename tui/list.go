package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/onestore/picokv/highlight"
)

func boldForeground(color, s string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(s)
}

const (
	colMarker   = 2
	colCmd      = 9
	colDuration = 10
	colTime     = 12
	colStatus   = 4
)

func (m Model) renderList(maxRows int) string {
	innerWidth := max(m.width-4, 20)
	colKey := max(innerWidth-colMarker-colCmd-colDuration-colTime-colStatus-5, 10)

	title := fmt.Sprintf(" picokv-top (%d commands) ", len(m.events))

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth)

	dataRows := max(maxRows-1, 1)
	start := 0
	if len(m.events) > dataRows {
		start = max(m.cursor-dataRows/2, 0)
		if start+dataRows > len(m.events) {
			start = len(m.events) - dataRows
		}
	}
	end := min(start+dataRows, len(m.events))

	header := fmt.Sprintf("  %-*s %-*s %*s %*s %-*s",
		colCmd, "Cmd",
		colKey, "Key",
		colDuration, "Duration",
		colTime, "Time",
		colStatus, "",
	)

	var rows []string
	rows = append(rows, lipgloss.NewStyle().Bold(true).Render(header))
	for i := start; i < end; i++ {
		rows = append(rows, m.renderEventRow(i, i == m.cursor, colKey))
	}

	borderColor := lipgloss.Color("240")
	border = border.BorderForeground(borderColor)
	content := strings.Join(rows, "\n")

	box := border.Render(content)
	lines := strings.Split(box, "\n")
	if len(lines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		dashes := max(innerWidth-len([]rune(title)), 0)
		lines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
		box = strings.Join(lines, "\n")
	}

	return box
}

func (m Model) renderEventRow(idx int, isCursor bool, colKey int) string {
	ev := m.events[idx]

	marker := "  "
	if isCursor {
		marker = "▶ "
	}

	dur := formatDurationValue(ev.duration())
	key := truncate(highlight.Command(keyArg(ev)), colKey)
	t := formatTime(ev.receivedAt)
	status := commandStatus(ev)

	row := fmt.Sprintf("%s%-*s %-*s %*s %*s",
		marker,
		colCmd, ev.Cmd,
		colKey, key,
		colDuration, dur,
		colTime, t,
	) + " " + status
	if isCursor {
		row = lipgloss.NewStyle().Bold(true).Render(row)
	}
	return row
}
