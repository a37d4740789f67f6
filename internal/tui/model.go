// Package tui implements the outline watcher: a terminal UI that polls a
// mirror store for a tree's published outline and lets the operator
// request cancellation of any node from outside the owning process.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/sbtinstruments/cyto/internal/mirror"
	"github.com/sbtinstruments/cyto/internal/outline"
)

// Model holds the watcher state
type Model struct {
	store     mirror.Store
	treeID    string
	refresh   time.Duration
	markerTTL time.Duration

	// UI state
	width    int
	height   int
	ready    bool
	quitting bool
	selected int

	// vp scrolls the outline when it is taller than the terminal
	vp viewport.Model

	// Last observed outline
	snapshot  outline.Snapshot
	published bool
	fetchErr  error

	// Result of the last cancel request, shown in the status bar
	notice string
}

// NewModel creates a watcher model for one tree.
func NewModel(store mirror.Store, treeID string, refresh, markerTTL time.Duration) Model {
	return Model{
		store:     store,
		treeID:    treeID,
		refresh:   refresh,
		markerTTL: markerTTL,
	}
}

// row is one selectable line of the rendered outline.
type row struct {
	rec   outline.Record
	depth int
}

// rows flattens the snapshot into selectable lines. Snapshot nodes are
// already in pre-order, so depth follows from each record's parent.
func (m Model) rows() []row {
	depth := make(map[string]int, m.snapshot.Len())
	out := make([]row, 0, m.snapshot.Len())
	for _, r := range m.snapshot.Nodes {
		d := 0
		if r.ParentID != "" {
			d = depth[r.ParentID] + 1
		}
		depth[r.ID] = d
		out = append(out, row{rec: r, depth: d})
	}
	return out
}

// selectedRow returns the currently selected row, if any.
func (m Model) selectedRow() (row, bool) {
	rows := m.rows()
	if len(rows) == 0 || m.selected < 0 || m.selected >= len(rows) {
		return row{}, false
	}
	return rows[m.selected], true
}

// clampSelection keeps the selection inside the current row range after a
// refresh shrinks or grows the outline.
func (m *Model) clampSelection() {
	n := m.snapshot.Len()
	if n == 0 {
		m.selected = 0
		return
	}
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// outlineHeight is the terminal height minus the header, status and help
// chrome around the scrolling outline.
func (m Model) outlineHeight() int {
	h := m.height - 5
	if h < 3 {
		h = 3
	}
	return h
}

// syncViewport rebuilds the outline content and scrolls so the selected
// row stays visible.
func (m *Model) syncViewport() {
	m.vp.SetContent(m.renderOutline())
	if m.vp.Height <= 0 {
		return
	}
	if m.selected < m.vp.YOffset {
		m.vp.SetYOffset(m.selected)
	} else if m.selected >= m.vp.YOffset+m.vp.Height {
		m.vp.SetYOffset(m.selected - m.vp.Height + 1)
	}
}
