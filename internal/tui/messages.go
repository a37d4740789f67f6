package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sbtinstruments/cyto/internal/mirror"
	"github.com/sbtinstruments/cyto/internal/outline"
)

// tickMsg is sent periodically to trigger a refresh from the store
type tickMsg time.Time

// snapshotMsg carries a freshly observed outline (or the error observing it)
type snapshotMsg struct {
	snap outline.Snapshot
	err  error
}

// cancelSentMsg reports the result of writing a cancellation marker
type cancelSentMsg struct {
	nodeID string
	label  string
	err    error
}

// Commands

// tickCmd schedules the next refresh tick.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// observeCmd reads the tree's outline from the store.
func observeCmd(store mirror.Store, treeID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		snap, err := outline.Observe(ctx, store, treeID)
		return snapshotMsg{snap: snap, err: err}
	}
}

// requestCancelCmd writes a cancellation-intent marker for the node.
func requestCancelCmd(store mirror.Store, treeID, nodeID, label string, ttl time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		err := outline.RequestRemoteCancel(ctx, store, treeID, nodeID, ttl)
		return cancelSentMsg{nodeID: nodeID, label: label, err: err}
	}
}
