// Package tui renders the download queue as an interactive terminal view.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	prog "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tubeload/tubeload/internal/config"
	"github.com/tubeload/tubeload/internal/download"
	"github.com/tubeload/tubeload/internal/progress"
)

type eventMsg struct {
	ev any
}

type eventsClosedMsg struct{}

// Model is the bubbletea model for the queue view.
type Model struct {
	manager *download.Manager
	events  <-chan any
	unsub   func()

	items    []download.Snapshot
	progress map[string]download.ItemProgressMsg
	cursor   int
	allDone  bool

	keys   KeyMap
	help   help.Model
	styles Styles
	bar    prog.Model
	width  int
}

// NewModel builds a queue view over the manager. It subscribes to manager
// events; quitting the view unsubscribes.
func NewModel(m *download.Manager, theme config.Theme) Model {
	events, unsub := m.Subscribe()
	return Model{
		manager:  m,
		events:   events,
		unsub:    unsub,
		items:    m.Items(),
		progress: make(map[string]download.ItemProgressMsg),
		keys:     DefaultKeyMap(),
		help:     help.New(),
		styles:   NewStyles(theme),
		bar:      prog.New(prog.WithDefaultGradient(), prog.WithoutPercentage()),
		width:    80,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(ch <-chan any) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case eventsClosedMsg:
		return m, tea.Quit

	case eventMsg:
		m.apply(msg.ev)
		return m, waitForEvent(m.events)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// apply folds one manager event into the view state.
func (m *Model) apply(ev any) {
	switch ev := ev.(type) {
	case download.ItemProgressMsg:
		m.progress[ev.ID] = ev
	case download.ItemRemovedMsg:
		delete(m.progress, ev.ID)
		m.refresh()
	case download.AllCompleteMsg:
		m.allDone = true
		m.refresh()
	default:
		m.allDone = false
		m.refresh()
	}
}

func (m *Model) refresh() {
	m.items = m.manager.Items()
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.unsub()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
		return m, nil
	}

	if len(m.items) == 0 {
		return m, nil
	}
	sel := m.items[m.cursor]

	switch {
	case key.Matches(msg, m.keys.MoveUp):
		_ = m.manager.Reorder(sel.ID, m.cursor-1)
	case key.Matches(msg, m.keys.MoveDn):
		_ = m.manager.Reorder(sel.ID, m.cursor+1)
	case key.Matches(msg, m.keys.Pause):
		_ = m.manager.Pause(sel.ID)
	case key.Matches(msg, m.keys.Resume):
		_ = m.manager.Resume(sel.ID)
	case key.Matches(msg, m.keys.Cancel):
		_ = m.manager.Cancel(sel.ID)
	case key.Matches(msg, m.keys.Restart):
		_ = m.manager.Restart(sel.ID)
	case key.Matches(msg, m.keys.Delete):
		_ = m.manager.Remove(sel.ID)
	}
	m.refresh()
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	title := "Downloads"
	if m.allDone && len(m.items) > 0 {
		title += " · all finished"
	}
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")

	if len(m.items) == 0 {
		b.WriteString(m.styles.Meta.Render("Queue is empty."))
		b.WriteString("\n")
	}

	for i, it := range m.items {
		b.WriteString(m.renderItem(i, it))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderItem(i int, it download.Snapshot) string {
	cursor := "  "
	nameStyle := m.styles.Item
	if i == m.cursor {
		cursor = "> "
		nameStyle = m.styles.Selected
	}

	status := m.styles.Status[it.Status].Render(it.Status.String())
	line := fmt.Sprintf("%s%s  %s  %s",
		cursor, nameStyle.Render(it.Filename), status, m.styles.Meta.Render(m.describe(it)))

	received, total := m.liveBytes(it)
	if it.Status == download.StatusActive && total > 0 {
		barWidth := m.width - 6
		if barWidth > 40 {
			barWidth = 40
		}
		if barWidth > 4 {
			m.bar.Width = barWidth
			ratio := float64(received) / float64(total)
			line += "\n    " + m.bar.ViewAs(ratio)
		}
	}
	if it.Status == download.StatusFailed && it.Error != "" {
		line += "\n    " + m.styles.Error.Render(it.Error)
	}
	return line
}

// liveBytes returns the freshest byte counts for an item. Progress events
// arrive far more often than snapshot refreshes, so they win when present.
func (m Model) liveBytes(it download.Snapshot) (received, total int64) {
	received, total = it.BytesReceived, it.BytesTotal
	if p, ok := m.progress[it.ID]; ok {
		received = p.Received
		if p.Total > 0 {
			total = p.Total
		}
	}
	return received, total
}

// describe summarizes sizes, rate and remaining time for one item.
func (m Model) describe(it download.Snapshot) string {
	switch it.Status {
	case download.StatusCompleted:
		return progress.FormatSize(it.BytesTotal)
	case download.StatusActive:
		received, total := m.liveBytes(it)
		var parts []string
		if total > 0 {
			parts = append(parts, fmt.Sprintf("%s of %s",
				progress.FormatSize(received), progress.FormatSize(total)))
		} else {
			parts = append(parts, progress.FormatSize(received))
		}
		if p, ok := m.progress[it.ID]; ok {
			if p.RateKnown {
				parts = append(parts, progress.FormatRate(p.Rate))
			}
			if p.ETAKnown {
				parts = append(parts, progress.FormatDuration(p.ETA)+" left")
			}
		}
		return strings.Join(parts, " · ")
	default:
		if it.BytesTotal > 0 {
			return progress.FormatSize(it.BytesTotal)
		}
		return ""
	}
}
