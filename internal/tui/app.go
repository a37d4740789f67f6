package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sbtinstruments/cyto/internal/mirror"
)

// App wraps the Bubbletea program
type App struct {
	model Model
}

// New creates a watcher for the given tree.
func New(store mirror.Store, treeID string, refresh, markerTTL time.Duration) *App {
	return &App{
		model: NewModel(store, treeID, refresh, markerTTL),
	}
}

// Run starts the watcher and blocks until the user quits.
func (a *App) Run() error {
	p := tea.NewProgram(a.model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watcher error: %w", err)
	}
	return nil
}
