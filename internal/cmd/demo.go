package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sbtinstruments/cyto/internal/config"
	"github.com/sbtinstruments/cyto/internal/outline"
	"github.com/sbtinstruments/cyto/internal/tasktree"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a demonstration task tree",
	Long: `Run a small demonstration tree with three stages, mirroring its
outline to the configured store while it executes.

While the demo runs, the tree can be observed and cancelled from
another terminal (requires the redis store backend):

  cyto watch <tree-id>
  cyto cancel <tree-id> <node-id>

Press Ctrl+C to request cancellation of the whole tree.`,
	RunE: runDemo,
}

var (
	demoTreeID   string
	demoFail     bool
	demoStepTime time.Duration
)

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().StringVar(&demoTreeID, "tree-id", "", "Tree ID to publish under (default: generated)")
	demoCmd.Flags().BoolVar(&demoFail, "fail", false, "Make one leaf task fail to demonstrate failure propagation")
	demoCmd.Flags().DurationVar(&demoStepTime, "step", 2*time.Second, "Duration of each demo task")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	log, err := openLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = log.Close() }()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var treeOpts []tasktree.Option
	treeOpts = append(treeOpts, tasktree.WithLogger(log))
	if demoTreeID != "" {
		treeOpts = append(treeOpts, tasktree.WithTreeID(demoTreeID))
	}

	tree := tasktree.New("demo", treeOpts...)
	fmt.Printf("Tree ID: %s\n", tree.TreeID())

	sync := outline.New(tree, store, outline.ConfigFromSettings(cfg), log)

	var wg conc.WaitGroup
	wg.Go(func() {
		_ = sync.Run(ctx)
	})

	// Cancel the whole tree on Ctrl+C
	wg.Go(func() {
		select {
		case <-ctx.Done():
			_ = tree.RequestCancel(tree.Root())
		case <-tree.Done():
		}
	})

	if err := spawnDemoStages(tree); err != nil {
		_ = tree.RequestCancel(tree.Root())
		wg.Wait()
		return err
	}

	treeErr := tree.Wait(context.Background())
	wg.Wait()

	snap, err := outline.Observe(context.Background(), store, tree.TreeID())
	if err == nil {
		fmt.Println("\nFinal outline:")
		fmt.Print(snap.Render())
	}

	if treeErr != nil {
		fmt.Printf("\nTree finished with failures: %v\n", treeErr)
		return nil
	}
	fmt.Println("\nTree completed.")
	return nil
}

// spawnDemoStages builds a three-stage tree: an "ingest" stage with two
// parallel workers, a "process" stage whose failure is isolated from the
// rest of the tree, and a "report" leaf.
func spawnDemoStages(tree *tasktree.Tree) error {
	root := tree.Root()

	ingest, err := tree.Spawn(root, "ingest", func(ctx context.Context, sc *tasktree.Scope) error {
		for i := 1; i <= 2; i++ {
			label := fmt.Sprintf("reader-%d", i)
			if _, err := sc.Spawn(label, demoWork(demoStepTime)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	_, err = tree.Spawn(root, "process", func(ctx context.Context, sc *tasktree.Scope) error {
		if _, err := sc.Spawn("transform", demoWork(demoStepTime)); err != nil {
			return err
		}
		if demoFail {
			_, err := sc.Spawn("flaky", func(ctx context.Context, _ *tasktree.Scope) error {
				select {
				case <-time.After(demoStepTime / 2):
					return errors.New("flaky task gave up")
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			return err
		}
		return nil
	}, tasktree.WithFailurePolicy(tasktree.PolicyIsolate))
	if err != nil {
		return err
	}

	// The report stage waits for the ingest stage before running.
	_, err = tree.Spawn(root, "report", func(ctx context.Context, sc *tasktree.Scope) error {
		if _, err := sc.Await(ctx, ingest); err != nil {
			return err
		}
		return demoWork(demoStepTime)(ctx, sc)
	})
	return err
}

// demoWork returns a body that sleeps for d, honoring cancellation.
func demoWork(d time.Duration) tasktree.Body {
	return func(ctx context.Context, _ *tasktree.Scope) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
