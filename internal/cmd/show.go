package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sbtinstruments/cyto/internal/config"
	"github.com/sbtinstruments/cyto/internal/errors"
	"github.com/sbtinstruments/cyto/internal/outline"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <tree-id>",
	Short: "Print the mirrored outline of a tree",
	Long: `Print the most recently published outline of a tree from the
mirror store.

The outline reflects the tree as of its last publish, which lags the
live tree by at most the configured publish interval.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var showJSON bool

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the raw outline snapshot as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	treeID := args[0]
	cfg := config.Get()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := outline.Observe(ctx, store, treeID)
	if err != nil {
		if errors.Is(err, errors.ErrNotPublished) {
			fmt.Printf("No outline published for tree %s\n", treeID)
			return nil
		}
		return fmt.Errorf("failed to read outline: %w", err)
	}

	if showJSON {
		payload, err := snap.Encode()
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	fmt.Printf("Tree %s (%d nodes, published %s)\n\n",
		snap.TreeID, snap.Len(), snap.Taken.Format(time.RFC3339))
	fmt.Print(snap.Render())
	return nil
}
