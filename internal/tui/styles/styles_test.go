package styles

import (
	"testing"

	"github.com/sbtinstruments/cyto/internal/tasktree"
)

func TestStateColor(t *testing.T) {
	states := []tasktree.State{
		tasktree.StatePending,
		tasktree.StateRunning,
		tasktree.StateCancelRequested,
		tasktree.StateCancelled,
		tasktree.StateCompleted,
		tasktree.StateFailed,
	}

	seen := make(map[string]tasktree.State)
	for _, s := range states {
		c := StateColor(s)
		if string(c) == "" {
			t.Errorf("StateColor(%s) returned empty color", s)
		}
		if prev, dup := seen[string(c)]; dup && prev != s {
			// Cancelled and cancel_requested may legitimately differ; all
			// current states map to distinct colors, keep it that way.
			t.Errorf("states %s and %s share color %s", prev, s, c)
		}
		seen[string(c)] = s
	}

	if StateColor(tasktree.State("bogus")) != MutedColor {
		t.Error("unknown state should fall back to the muted color")
	}
}

func TestStateIcon(t *testing.T) {
	if StateIcon(tasktree.StateCompleted) != "✓" {
		t.Errorf("completed icon = %q, want ✓", StateIcon(tasktree.StateCompleted))
	}
	if StateIcon(tasktree.StateFailed) != "✗" {
		t.Errorf("failed icon = %q, want ✗", StateIcon(tasktree.StateFailed))
	}
	if StateIcon(tasktree.State("bogus")) == "" {
		t.Error("unknown state should still render an icon")
	}
}
