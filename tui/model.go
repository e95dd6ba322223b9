// Package tui implements the bubbletea-based live monitor client: it
// connects to a running daemon's monitor endpoint and renders a
// scrolling list of dispatched commands.
package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/onestore/picokv/clipboard"
)

// Model is the Bubble Tea model for the picokv live monitor.
type Model struct {
	target string
	stream *eventStream

	events []Event
	cursor int
	follow bool
	width  int
	height int
	err    error
}

type eventMsg struct{ Event Event }
type errMsg struct{ Err error }
type connectedMsg struct{ stream *eventStream }

// New creates a Model targeting the given monitor HTTP address, e.g.
// "http://127.0.0.1:9200".
func New(target string) Model {
	return Model{target: target, follow: true}
}

// Init starts the SSE connection.
func (m Model) Init() tea.Cmd {
	return connect(m.target)
}

func connect(target string) tea.Cmd {
	return func() tea.Msg {
		stream, err := dialEvents(target)
		if err != nil {
			return errMsg{Err: err}
		}
		return connectedMsg{stream: stream}
	}
}

func recvEvent(stream *eventStream) tea.Cmd {
	return func() tea.Msg {
		ev, err := stream.next()
		if err != nil {
			return errMsg{Err: err}
		}
		return eventMsg{Event: ev}
	}
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case connectedMsg:
		m.stream = msg.stream
		return m, recvEvent(msg.stream)

	case eventMsg:
		m.events = append(m.events, msg.Event)
		if m.follow {
			m.cursor = max(len(m.events)-1, 0)
		}
		return m, recvEvent(m.stream)

	case errMsg:
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		return m.updateList(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.stream != nil {
			m.stream.close()
		}
		return m, tea.Quit
	case "c":
		return m.copyKey(), nil
	case "j", "down":
		if len(m.events) > 0 && m.cursor < len(m.events)-1 {
			m.cursor++
		}
		m.follow = m.cursor == len(m.events)-1
		return m, nil
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.follow = false
		}
		return m, nil
	}
	return m, nil
}

func (m Model) copyKey() Model {
	if m.cursor < 0 || m.cursor >= len(m.events) {
		return m
	}
	ev := m.events[m.cursor]
	if len(ev.Args) == 0 {
		return m
	}
	_ = clipboard.Copy(context.Background(), ev.Args[0])
	return m
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	if m.err != nil {
		return friendlyError(m.err, m.width)
	}
	if len(m.events) == 0 {
		return "Waiting for commands..."
	}

	footer := "  q: quit  j/k: navigate  c: copy key"
	listHeight := max(m.height-2, 3)

	return strings.Join([]string{m.renderList(listHeight), footer}, "\n")
}

func commandStatus(ev Event) string {
	if ev.Error != "" {
		return boldForeground("1", "E")
	}
	if ev.Hot {
		return boldForeground("3", "HOT")
	}
	return ""
}

func keyArg(ev Event) string {
	if len(ev.Args) == 0 {
		return "-"
	}
	return ev.Args[0]
}

