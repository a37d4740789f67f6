package tasktree

import (
	"context"
	"testing"
	"time"

	"github.com/sbtinstruments/cyto/internal/testutil"
)

func TestZZDiagCancelEvents(t *testing.T) {
	tree := New("root")
	rec := testutil.NewEventRecorder(tree.Events())

	block := make(chan struct{})
	id, _ := tree.Spawn(tree.Root(), "worker", func(ctx context.Context, sc *Scope) error {
		<-block
		return nil
	})

	testutil.WaitFor(t, time.Second, func() bool {
		s, err := tree.State(id)
		return err == nil && s == StateRunning
	}, "node to start running")

	if err := tree.RequestCancel(id); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	testutil.WaitFor(t, time.Second, func() bool {
		s, err := tree.State(id)
		return err == nil && s == StateCancelRequested
	}, "cancel mark")

	for i := 0; i < 50; i++ {
		time.Sleep(10 * time.Millisecond)
		if len(rec.Events()) > 0 {
			break
		}
	}
	t.Logf("worker id = %s", id)
	for i, e := range rec.Events() {
		t.Logf("event[%d]: type=%s %#v", i, e.EventType(), e)
	}
	close(block)
}
