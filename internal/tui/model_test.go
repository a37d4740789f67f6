package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sbtinstruments/cyto/internal/mirror"
	"github.com/sbtinstruments/cyto/internal/outline"
	"github.com/sbtinstruments/cyto/internal/tasktree"
)

func sampleSnapshot() outline.Snapshot {
	return outline.Snapshot{
		TreeID: "tree-1",
		Taken:  time.Now(),
		Nodes: []outline.Record{
			{ID: "root", Label: "pipeline", State: tasktree.StateRunning},
			{ID: "a", ParentID: "root", Label: "ingest", State: tasktree.StateRunning},
			{ID: "a1", ParentID: "a", Label: "reader", State: tasktree.StateCompleted},
			{ID: "b", ParentID: "root", Label: "report", State: tasktree.StatePending},
		},
	}
}

func testModel() Model {
	m := NewModel(mirror.NewMemoryStore(), "tree-1", 50*time.Millisecond, time.Minute)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)
	next, _ = m.Update(snapshotMsg{snap: sampleSnapshot()})
	return next.(Model)
}

func TestModel_RowsDepth(t *testing.T) {
	m := testModel()
	rows := m.rows()

	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}

	wantDepths := []int{0, 1, 2, 1}
	for i, want := range wantDepths {
		if rows[i].depth != want {
			t.Errorf("row %d (%s): depth = %d, want %d", i, rows[i].rec.Label, rows[i].depth, want)
		}
	}
}

func TestModel_SelectionNavigation(t *testing.T) {
	m := testModel()

	// Down moves selection, bounded by the last row
	for i := 0; i < 10; i++ {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = next.(Model)
	}
	if m.selected != 3 {
		t.Errorf("selected = %d after many downs, want 3", m.selected)
	}

	// Up moves back, bounded by zero
	for i := 0; i < 10; i++ {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
		m = next.(Model)
	}
	if m.selected != 0 {
		t.Errorf("selected = %d after many ups, want 0", m.selected)
	}
}

func TestModel_ClampSelectionAfterShrink(t *testing.T) {
	m := testModel()
	m.selected = 3

	shrunk := m.snapshot
	shrunk.Nodes = shrunk.Nodes[:2]
	next, _ := m.Update(snapshotMsg{snap: shrunk})
	m = next.(Model)

	if m.selected != 1 {
		t.Errorf("selected = %d after shrink, want 1", m.selected)
	}
}

func TestModel_CancelTerminalNodeRefused(t *testing.T) {
	m := testModel()
	m.selected = 2 // "reader", completed

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	m = next.(Model)

	if cmd != nil {
		t.Error("expected no command for cancelling a terminal node")
	}
	if !strings.Contains(m.notice, "already") {
		t.Errorf("notice = %q, want mention that node is already terminal", m.notice)
	}
}

func TestModel_CancelWritesMarker(t *testing.T) {
	store := mirror.NewMemoryStore()
	m := NewModel(store, "tree-1", 50*time.Millisecond, time.Minute)
	m.snapshot = sampleSnapshot()
	m.published = true
	m.selected = 1 // "ingest", running

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if cmd == nil {
		t.Fatal("expected a command for cancelling a running node")
	}

	msg := cmd()
	sent, ok := msg.(cancelSentMsg)
	if !ok {
		t.Fatalf("expected cancelSentMsg, got %T", msg)
	}
	if sent.err != nil {
		t.Fatalf("cancel command failed: %v", sent.err)
	}

	pending, err := store.PendingCancels(context.Background(), "tree-1")
	if err != nil {
		t.Fatalf("PendingCancels failed: %v", err)
	}
	if len(pending) != 1 || pending[0] != "a" {
		t.Errorf("pending cancels = %v, want [a]", pending)
	}
}

func TestModel_ViewShowsOutline(t *testing.T) {
	m := testModel()
	view := m.View()

	for _, label := range []string{"pipeline", "ingest", "reader", "report"} {
		if !strings.Contains(view, label) {
			t.Errorf("view does not contain node label %q", label)
		}
	}
	if !strings.Contains(view, "tree-1") {
		t.Error("view does not contain the tree id")
	}
}

func TestModel_ViewBeforePublish(t *testing.T) {
	m := NewModel(mirror.NewMemoryStore(), "tree-1", 50*time.Millisecond, time.Minute)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)

	view := m.View()
	if !strings.Contains(view, "No outline published") {
		t.Errorf("view = %q, want not-published notice", view)
	}
}

func tallSnapshot(n int) outline.Snapshot {
	nodes := []outline.Record{
		{ID: "root", Label: "pipeline", State: tasktree.StateRunning},
	}
	for i := 1; i < n; i++ {
		nodes = append(nodes, outline.Record{
			ID:       fmt.Sprintf("n%02d", i),
			ParentID: "root",
			Label:    fmt.Sprintf("step-%02d", i),
			State:    tasktree.StateRunning,
		})
	}
	return outline.Snapshot{TreeID: "tree-1", Taken: time.Now(), Nodes: nodes}
}

func TestModel_TallOutlineScrollsToSelection(t *testing.T) {
	m := NewModel(mirror.NewMemoryStore(), "tree-1", 50*time.Millisecond, time.Minute)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	m = next.(Model)
	next, _ = m.Update(snapshotMsg{snap: tallSnapshot(30)})
	m = next.(Model)

	if m.vp.Height != 5 {
		t.Fatalf("viewport height = %d, want 5", m.vp.Height)
	}
	if !strings.Contains(m.View(), "pipeline") {
		t.Error("top of the outline should be visible before scrolling")
	}
	if strings.Contains(m.View(), "step-29") {
		t.Error("rows beyond the viewport height should be clipped")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnd})
	m = next.(Model)

	if m.selected != 29 {
		t.Fatalf("selected = %d after end, want 29", m.selected)
	}
	if m.vp.YOffset != 25 {
		t.Errorf("viewport offset = %d, want 25", m.vp.YOffset)
	}
	view := m.View()
	if !strings.Contains(view, "step-29") {
		t.Error("selected row should be scrolled into view")
	}
	if strings.Contains(view, "pipeline") {
		t.Error("top of the outline should be scrolled out of view")
	}
}

func TestModel_SnapshotErrorKeepsLastOutline(t *testing.T) {
	m := testModel()

	next, _ := m.Update(snapshotMsg{err: context.DeadlineExceeded})
	m = next.(Model)

	if m.fetchErr == nil {
		t.Error("expected fetchErr to be recorded")
	}
	if m.snapshot.Len() != 4 {
		t.Error("a fetch error should not discard the last snapshot")
	}
}
