// Package internal contains integration tests that verify the packages
// work together correctly: the task tree feeding the synchronizer, the
// synchronizer publishing to a mirror store, and remote observers reading
// and cancelling through that store.
package internal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sbtinstruments/cyto/internal/event"
	"github.com/sbtinstruments/cyto/internal/logging"
	"github.com/sbtinstruments/cyto/internal/mirror"
	"github.com/sbtinstruments/cyto/internal/outline"
	"github.com/sbtinstruments/cyto/internal/tasktree"
	"github.com/sbtinstruments/cyto/internal/testutil"
)

func fastSyncConfig() outline.Config {
	return outline.Config{
		MinPublishInterval: 5 * time.Millisecond,
		PollInterval:       10 * time.Millisecond,
		MarkerTTL:          time.Minute,
		MaxPublishAttempts: 3,
		RetryBackoff:       time.Millisecond,
	}
}

// TestTreeMirrorsToStore runs a tree with an attached synchronizer and
// verifies an external observer sees the outline converge to the tree's
// final shape through the store alone.
func TestTreeMirrorsToStore(t *testing.T) {
	store := mirror.NewMemoryStore()
	tree := tasktree.New("pipeline")
	sync := outline.New(tree, store, fastSyncConfig(), logging.NopLogger())

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = sync.Run(context.Background())
	}()

	release := make(chan struct{})
	worker := func(ctx context.Context, _ *tasktree.Scope) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if _, err := tree.Spawn(tree.Root(), "ingest", worker); err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if _, err := tree.Spawn(tree.Root(), "report", worker); err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	// An external observer sees the running workers without touching the
	// tree itself.
	testutil.WaitFor(t, time.Second, func() bool {
		snap, err := outline.Observe(context.Background(), store, tree.TreeID())
		if err != nil {
			return false
		}
		running := 0
		for _, r := range snap.Nodes {
			if r.State == tasktree.StateRunning {
				running++
			}
		}
		return running >= 2
	}, "published outline to show both workers running")

	close(release)
	if err := tree.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("synchronizer did not drain after the tree finished")
	}

	snap, err := outline.Observe(context.Background(), store, tree.TreeID())
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	root, ok := snap.Root()
	if !ok {
		t.Fatal("final snapshot has no root")
	}
	if root.State != tasktree.StateCompleted {
		t.Errorf("final root state = %s, want completed", root.State)
	}
}

// TestRemoteCancelRoundTrip cancels a running node purely through the
// store: a marker written by an outside party is collected by the
// synchronizer and turned into a local cancellation.
func TestRemoteCancelRoundTrip(t *testing.T) {
	store := mirror.NewMemoryStore()
	tree := tasktree.New("job")
	bus := tree.Events()
	rec := testutil.NewEventRecorder(bus)

	sync := outline.New(tree, store, fastSyncConfig(), logging.NopLogger())
	go func() { _ = sync.Run(context.Background()) }()

	workerID, err := tree.Spawn(tree.Root(), "worker", func(ctx context.Context, _ *tasktree.Scope) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	testutil.WaitFor(t, time.Second, func() bool {
		st, err := tree.State(workerID)
		return err == nil && st == tasktree.StateRunning
	}, "worker to start running")

	if err := outline.RequestRemoteCancel(context.Background(), store, tree.TreeID(), string(workerID), time.Minute); err != nil {
		t.Fatalf("RequestRemoteCancel failed: %v", err)
	}

	if err := tree.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	<-tree.Done()

	// The marker handling runs on the synchronizer's poll loop, so give it
	// a poll cycle to publish the event and consume the marker.
	testutil.WaitFor(t, time.Second, func() bool {
		return rec.CountType(event.TypeRemoteCancel) == 1
	}, "remote cancel event to be published")

	if final, ok := rec.FinalState(string(workerID)); !ok || final != string(tasktree.StateCancelled) {
		t.Errorf("worker final state = %q, want cancelled", final)
	}

	testutil.WaitFor(t, time.Second, func() bool {
		pending, err := store.PendingCancels(context.Background(), tree.TreeID())
		return err == nil && len(pending) == 0
	}, "marker to be consumed rather than left to expire")
}

// TestFailureVisibleThroughMirror verifies that a propagated failure is
// reported by Wait and that the mirrored outline ends with the root
// cancelled (fail-fast took the rest of the tree down).
func TestFailureVisibleThroughMirror(t *testing.T) {
	store := mirror.NewMemoryStore()
	tree := tasktree.New("batch")
	sync := outline.New(tree, store, fastSyncConfig(), logging.NopLogger())

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = sync.Run(context.Background())
	}()

	if _, err := tree.Spawn(tree.Root(), "steady", func(ctx context.Context, _ *tasktree.Scope) error {
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if _, err := tree.Spawn(tree.Root(), "broken", func(ctx context.Context, _ *tasktree.Scope) error {
		return errors.New("checksum mismatch")
	}); err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	err := tree.Wait(context.Background())
	if err == nil {
		t.Fatal("Wait should report the failure")
	}
	if !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("Wait error = %v, want the leaf failure", err)
	}

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("synchronizer did not drain")
	}

	snap, obsErr := outline.Observe(context.Background(), store, tree.TreeID())
	if obsErr != nil {
		t.Fatalf("Observe failed: %v", obsErr)
	}
	root, ok := snap.Root()
	if !ok {
		t.Fatal("final snapshot has no root")
	}
	if root.State != tasktree.StateCancelled {
		t.Errorf("final root state = %s, want cancelled after fail-fast", root.State)
	}
}

// TestTreeActivityIsLogged runs a tree with a file logger and reads the
// transitions back through the log aggregation utilities.
func TestTreeActivityIsLogged(t *testing.T) {
	logPath := t.TempDir() + "/cyto.log"
	log, err := logging.NewLogger(logPath, logging.LevelDebug, logging.FormatJSON)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	tree := tasktree.New("logged", tasktree.WithLogger(log))
	if _, err := tree.Spawn(tree.Root(), "step", func(ctx context.Context, _ *tasktree.Scope) error {
		return nil
	}); err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if err := tree.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := logging.ReadLogFile(logPath)
	if err != nil {
		t.Fatalf("ReadLogFile failed: %v", err)
	}

	treeEntries := logging.FilterLogs(entries, logging.LogFilter{TreeID: tree.TreeID()})
	if len(treeEntries) == 0 {
		t.Fatal("expected log entries tagged with the tree id")
	}

	transitions := logging.FilterLogs(treeEntries, logging.LogFilter{MessageContains: "state changed"})
	if len(transitions) == 0 {
		t.Error("expected state transition entries in the log")
	}
}
