package cmd

import (
	"github.com/sbtinstruments/cyto/internal/config"
	"github.com/sbtinstruments/cyto/internal/tui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <tree-id>",
	Short: "Watch a tree's mirrored outline in a terminal UI",
	Long: `Open a terminal UI that periodically re-reads the tree's outline
from the mirror store and displays it as an indented, state-colored
outline.

Keys:
  up/down  select a node
  c        request cancellation of the selected node's subtree
  r        refresh immediately
  q        quit`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	treeID := args[0]
	cfg := config.Get()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	app := tui.New(store, treeID, cfg.TUI.RefreshInterval(), cfg.Mirror.MarkerTTL())
	return app.Run()
}
