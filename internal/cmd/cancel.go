package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sbtinstruments/cyto/internal/config"
	"github.com/sbtinstruments/cyto/internal/outline"
	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <tree-id> <node-id>",
	Short: "Request cancellation of a node from outside the process",
	Long: `Write a cancellation-intent marker for a node into the mirror store.

The synchronizer attached to the tree picks up the marker on its next
poll and requests cancellation of the node and its whole subtree.
Markers that go unread past their TTL expire without effect, so a
cancel aimed at a tree that is no longer running is harmless.`,
	Args: cobra.ExactArgs(2),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	treeID, nodeID := args[0], args[1]
	cfg := config.Get()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ttl := cfg.Mirror.MarkerTTL()
	if err := outline.RequestRemoteCancel(ctx, store, treeID, nodeID, ttl); err != nil {
		return fmt.Errorf("failed to write cancel marker: %w", err)
	}

	fmt.Printf("Cancellation requested for node %s in tree %s (marker expires in %s)\n",
		nodeID, treeID, ttl)
	return nil
}
