package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sbtinstruments/cyto/internal/errors"
)

// Init starts the refresh loop with an immediate fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(observeCmd(m.store, m.treeID), tickCmd(m.refresh))
}

// Update handles incoming messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.vp = viewport.New(msg.Width, m.outlineHeight())
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = m.outlineHeight()
		}
		m.syncViewport()
		return m, nil

	case tickMsg:
		return m, tea.Batch(observeCmd(m.store, m.treeID), tickCmd(m.refresh))

	case snapshotMsg:
		if msg.err != nil {
			if errors.Is(msg.err, errors.ErrNotPublished) {
				m.published = false
				m.fetchErr = nil
			} else {
				m.fetchErr = msg.err
			}
			m.syncViewport()
			return m, nil
		}
		m.snapshot = msg.snap
		m.published = true
		m.fetchErr = nil
		m.clampSelection()
		m.syncViewport()
		return m, nil

	case cancelSentMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("cancel of %s failed: %v", msg.label, msg.err)
		} else {
			m.notice = fmt.Sprintf("cancel requested for %s", msg.label)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleKey processes keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		m.syncViewport()
		return m, nil

	case "down", "j":
		if m.selected < m.snapshot.Len()-1 {
			m.selected++
		}
		m.syncViewport()
		return m, nil

	case "g", "home":
		m.selected = 0
		m.syncViewport()
		return m, nil

	case "G", "end":
		if n := m.snapshot.Len(); n > 0 {
			m.selected = n - 1
		}
		m.syncViewport()
		return m, nil

	case "r":
		return m, observeCmd(m.store, m.treeID)

	case "c":
		sel, ok := m.selectedRow()
		if !ok {
			return m, nil
		}
		if sel.rec.State.IsTerminal() {
			m.notice = fmt.Sprintf("%s is already %s", sel.rec.Label, sel.rec.State)
			return m, nil
		}
		return m, requestCancelCmd(m.store, m.treeID, sel.rec.ID, sel.rec.Label, m.markerTTL)
	}

	return m, nil
}
