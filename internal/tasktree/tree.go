package tasktree

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/sbtinstruments/cyto/internal/errors"
	"github.com/sbtinstruments/cyto/internal/event"
	"github.com/sbtinstruments/cyto/internal/logging"
)

// NodeID is an opaque, process-unique node identifier. IDs are never reused.
type NodeID string

// Body is the unit of work a node executes. Returning nil marks the node
// Completed; returning an error marks it Failed. The context is cancelled
// when cancellation of the node is requested, and the scope allows the body
// to spawn and await children of its own.
type Body func(ctx context.Context, sc *Scope) error

// node is the arena entry for one task. Parent/child relations are stored
// as id references so the tree can be torn down by clearing the arena.
type node struct {
	id       NodeID
	parent   NodeID
	label    string
	state    State
	policy   FailurePolicy
	children []NodeID

	body   Body
	ctx    context.Context
	cancel context.CancelFunc

	started   bool // body goroutine reached Running
	bodyDone  bool // body returned
	bodyErr   error
	released  bool // root only: Wait was called
	cancelled bool // cancellation has been requested

	// failure is set when the node finalizes as Failed. contained marks a
	// failure that holds only recorded child failures (PolicyIsolate) and
	// therefore does not trigger the parent's policy.
	failure   error
	contained bool

	// childFailures records uncontained failures of direct children, in
	// finalization order.
	childFailures []error

	terminal chan struct{} // closed when the node reaches a terminal state
}

// Tree owns the node arena and enforces the supervision rules. All methods
// are safe for concurrent use.
type Tree struct {
	treeID     string
	bus        *event.Bus
	log        *logging.Logger
	rootPolicy FailurePolicy

	mu     sync.Mutex
	nodes  map[NodeID]*node
	root   NodeID
	finals map[NodeID]NodeInfo // terminal info of pruned nodes

	// failures collects every uncontained failure, wrapped with the
	// failing node's label, in finalization order. Wait joins them.
	failures []error

	pruneHold  int
	pruneQueue []NodeID

	// pending holds emitted but not-yet-dispatched events. A single
	// dispatcher goroutine drains it, preserving per-tree total order
	// while keeping handler execution outside the tree lock.
	pending  []event.Event
	notify   chan struct{}
	finished bool
	done     chan struct{}
}

// Option configures a Tree at construction time.
type Option func(*Tree)

// WithTreeID overrides the generated tree id. Used by tests and by callers
// that need a predictable mirror-store key.
func WithTreeID(id string) Option {
	return func(t *Tree) { t.treeID = id }
}

// WithLogger sets the logger the tree emits transition diagnostics to.
func WithLogger(log *logging.Logger) Option {
	return func(t *Tree) { t.log = log }
}

// WithBus makes the tree publish its events on an existing bus instead of
// creating its own.
func WithBus(bus *event.Bus) Option {
	return func(t *Tree) { t.bus = bus }
}

// WithRootPolicy sets how the root reacts to its children's failures.
// The default is PolicyPropagate.
func WithRootPolicy(p FailurePolicy) Option {
	return func(t *Tree) { t.rootPolicy = p }
}

type spawnConfig struct {
	policy FailurePolicy
}

// SpawnOption configures a single spawned node.
type SpawnOption func(*spawnConfig)

// WithFailurePolicy sets how the new node reacts to its children's
// failures. The default is PolicyPropagate.
func WithFailurePolicy(p FailurePolicy) SpawnOption {
	return func(c *spawnConfig) { c.policy = p }
}

// New creates a tree with a body-less supervisory root in StatePending.
// The root transitions to StateRunning on the first spawn and finalizes
// once Wait has been called and all children are terminal.
func New(label string, opts ...Option) *Tree {
	t := &Tree{
		treeID:     uuid.NewString(),
		log:        logging.NopLogger(),
		rootPolicy: PolicyPropagate,
		nodes:      make(map[NodeID]*node),
		finals:     make(map[NodeID]NodeInfo),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.bus == nil {
		t.bus = event.NewBus()
	}
	t.log = t.log.WithComponent("tree").WithTree(t.treeID)

	ctx, cancel := context.WithCancel(context.Background())
	root := &node{
		id:       NodeID(uuid.NewString()),
		label:    label,
		state:    StatePending,
		policy:   t.rootPolicy,
		ctx:      ctx,
		cancel:   cancel,
		terminal: make(chan struct{}),
	}
	t.root = root.id
	t.nodes[root.id] = root

	t.mu.Lock()
	t.emitLocked(event.NewNodeSpawnedEvent(t.treeID, string(root.id), "", label, root.state.String()))
	t.mu.Unlock()

	go t.dispatch()
	return t
}

// TreeID returns the tree's identifier, used in mirror-store keys.
func (t *Tree) TreeID() string { return t.treeID }

// Root returns the id of the root node. The root is never pruned.
func (t *Tree) Root() NodeID { return t.root }

// Events returns the bus the tree publishes its lifecycle events on.
func (t *Tree) Events() *event.Bus { return t.bus }

// Done returns a channel that is closed once the root is terminal and every
// event has been dispatched.
func (t *Tree) Done() <-chan struct{} { return t.done }

// Spawn creates a new child node under parent in StatePending, appends it
// to the parent's ordered child list, and schedules body for execution.
// It fails with ErrTreeClosed if the parent is terminal or cancelling, and
// with ErrUnknownNode if the parent id is not in the tree.
func (t *Tree) Spawn(parent NodeID, label string, body Body, opts ...SpawnOption) (NodeID, error) {
	if body == nil {
		return "", errors.NewTreeError("task body is required", nil).WithOp("spawn")
	}

	cfg := spawnConfig{policy: PolicyPropagate}
	for _, opt := range opts {
		opt(&cfg)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.nodes[parent]
	if !ok {
		return "", errors.NewTreeError("parent not in tree", errors.ErrUnknownNode).
			WithNodeID(string(parent)).WithOp("spawn")
	}
	if p.state.IsTerminal() || p.cancelled {
		return "", errors.NewTreeError("parent no longer accepts children", errors.ErrTreeClosed).
			WithNodeID(string(parent)).WithOp("spawn")
	}

	// The root starts supervising on its first spawn.
	if parent == t.root && p.state == StatePending {
		t.transitionLocked(p, StateRunning, nil)
	}

	ctx, cancel := context.WithCancel(p.ctx)
	n := &node{
		id:       NodeID(uuid.NewString()),
		parent:   parent,
		label:    label,
		state:    StatePending,
		policy:   cfg.policy,
		body:     body,
		ctx:      ctx,
		cancel:   cancel,
		terminal: make(chan struct{}),
	}
	p.children = append(p.children, n.id)
	t.nodes[n.id] = n

	t.emitLocked(event.NewNodeSpawnedEvent(t.treeID, string(n.id), string(parent), label, n.state.String()))
	t.log.Debug("node spawned", "node_id", n.id, "parent_id", parent, "label", label)

	go t.runBody(n)
	return n.id, nil
}

// runBody moves the node to Running and executes its body, converting
// panics into failures. Bodies run outside the tree lock.
func (t *Tree) runBody(n *node) {
	t.mu.Lock()
	if n.state != StatePending || n.cancelled {
		// Cancellation won the race before the body started; the node is
		// resolved on the cancellation path.
		t.mu.Unlock()
		return
	}
	n.started = true
	t.transitionLocked(n, StateRunning, nil)
	ctx := n.ctx
	sc := &Scope{tree: t, id: n.id}
	t.mu.Unlock()

	var bodyErr error
	var catcher panics.Catcher
	catcher.Try(func() {
		bodyErr = n.body(ctx, sc)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		bodyErr = errors.Wrap(recovered.AsError(), "task body panicked")
	}

	t.mu.Lock()
	n.bodyDone = true
	n.bodyErr = bodyErr
	t.maybeFinalizeLocked(n)
	t.mu.Unlock()
}

// RequestCancel requests cancellation of the node and every live
// descendant, depth-first. All descendants are marked and their body
// contexts cancelled before the call returns, so no new descendant can be
// spawned under a marked node afterwards. Repeat calls are idempotent and
// emit no further events. Unknown (including already pruned) ids fail with
// ErrUnknownNode.
func (t *Tree) RequestCancel(id NodeID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return errors.NewTreeError("cancel target not in tree", errors.ErrUnknownNode).
			WithNodeID(string(id)).WithOp("request_cancel")
	}
	t.cancelSubtreeLocked(n)
	return nil
}

// cancelSubtreeLocked marks n and all live descendants, pre-order, then
// finalizes bottom-up whatever became resolvable (bodies that never
// started). Nodes already marked or terminal are left alone: their
// descendants were marked when they were.
func (t *Tree) cancelSubtreeLocked(n *node) {
	if n.state.IsTerminal() || n.cancelled {
		return
	}
	n.cancelled = true
	if n.state == StateRunning || (n.state == StatePending && len(n.children) > 0) {
		t.transitionLocked(n, StateCancelRequested, nil)
	}
	n.cancel()

	for _, id := range slices.Clone(n.children) {
		if c, ok := t.nodes[id]; ok {
			t.cancelSubtreeLocked(c)
		}
	}
	t.maybeFinalizeLocked(n)
}

// State returns the node's current state. Pruned nodes report their final
// state; ids that never existed fail with ErrUnknownNode.
func (t *Tree) State(id NodeID) (State, error) {
	info, err := t.Info(id)
	if err != nil {
		return "", err
	}
	return info.State, nil
}

// Info returns a read-only description of the node. Pruned nodes report
// their terminal info.
func (t *Tree) Info(id NodeID) (NodeInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if info, ok := t.finals[id]; ok {
		return info, nil
	}
	n, ok := t.nodes[id]
	if !ok {
		return NodeInfo{}, errors.NewTreeError("node not in tree", errors.ErrUnknownNode).
			WithNodeID(string(id)).WithOp("info")
	}
	return t.infoLocked(n), nil
}

func (t *Tree) infoLocked(n *node) NodeInfo {
	info := NodeInfo{
		ID:       n.id,
		ParentID: n.parent,
		Label:    n.label,
		State:    n.state,
	}
	if n.failure != nil {
		info.Failure = n.failure.Error()
	}
	return info
}

// Len returns the number of live (not yet pruned) nodes.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// Export returns a point-in-time pre-order listing of the live tree
// (parents before children, children in spawn order). Observers use it to
// seed their own model before folding events.
func (t *Tree) Export() []NodeInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]NodeInfo, 0, len(t.nodes))
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n, ok := t.nodes[id]
		if !ok {
			return
		}
		out = append(out, t.infoLocked(n))
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// Await blocks until the node reaches a terminal state and returns it.
// If the node was already pruned its final state is returned immediately.
func (t *Tree) Await(ctx context.Context, id NodeID) (State, error) {
	t.mu.Lock()
	if info, ok := t.finals[id]; ok {
		t.mu.Unlock()
		return info.State, nil
	}
	n, ok := t.nodes[id]
	if !ok {
		t.mu.Unlock()
		return "", errors.NewTreeError("node not in tree", errors.ErrUnknownNode).
			WithNodeID(string(id)).WithOp("await")
	}
	ch := n.terminal
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-ch:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return n.state, nil
}

// Wait marks the root's supervisory work as finished, blocks until the
// root is terminal, and returns the aggregated failure: every uncontained
// node failure wrapped with its label and joined, or nil if none occurred.
func (t *Tree) Wait(ctx context.Context) error {
	t.mu.Lock()
	rn := t.nodes[t.root]
	rn.released = true
	t.maybeFinalizeLocked(rn)
	ch := rn.terminal
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.failures) > 0 {
		return errors.Join(t.failures...)
	}
	return nil
}

// HoldPruning defers removal of terminal childless nodes until the
// returned release function is called. The synchronizer holds pruning
// around a publish so the published snapshot stays consistent with the
// live tree. Holds nest; release is idempotent.
func (t *Tree) HoldPruning() (release func()) {
	t.mu.Lock()
	t.pruneHold++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.pruneHold--
			if t.pruneHold == 0 {
				t.flushPrunesLocked()
			}
			t.mu.Unlock()
		})
	}
}

// maybeFinalizeLocked resolves n to a terminal state if its body is over
// and all children are terminal, then reacts on the parent: failure policy
// evaluation, pruning, and cascading finalization up the tree.
func (t *Tree) maybeFinalizeLocked(n *node) {
	if n.state.IsTerminal() {
		return
	}
	for _, id := range n.children {
		if c, ok := t.nodes[id]; ok && !c.state.IsTerminal() {
			return
		}
	}
	bodyOver := n.bodyDone ||
		(n.body == nil && (n.released || n.cancelled)) ||
		(n.body != nil && !n.started && n.cancelled)
	if !bodyOver {
		return
	}

	var final State
	var failure error
	contained := false
	switch {
	case n.bodyErr != nil && !(n.cancelled && errors.Is(n.bodyErr, context.Canceled)):
		final, failure = StateFailed, n.bodyErr
	case n.cancelled:
		final = StateCancelled
	case len(n.childFailures) > 0:
		final = StateFailed
		failure = errors.Join(n.childFailures...)
		contained = true
	default:
		final = StateCompleted
	}

	n.failure = failure
	n.contained = contained
	t.transitionLocked(n, final, failure)
	close(n.terminal)
	n.cancel()

	if final == StateFailed && !contained {
		t.failures = append(t.failures, errors.Wrapf(failure, "%s", n.label))
	}

	if n.id == t.root {
		t.finishLocked(n)
		return
	}

	p, ok := t.nodes[n.parent]
	if !ok {
		return
	}
	if final == StateFailed && !contained {
		p.childFailures = append(p.childFailures, errors.Wrapf(failure, "%s", n.label))
		if p.policy == PolicyPropagate {
			// Fail-fast: cancel sibling subtrees at every level on the
			// path from the parent up to the root.
			for a := p; ; {
				t.cancelSubtreeLocked(a)
				if a.id == t.root {
					break
				}
				next, ok := t.nodes[a.parent]
				if !ok {
					break
				}
				a = next
			}
		}
	}

	t.pruneLocked(n)
	t.maybeFinalizeLocked(p)
}

// pruneLocked removes a terminal childless node from the arena, or queues
// the removal while a pruning hold is active. The root is never pruned.
func (t *Tree) pruneLocked(n *node) {
	if n.id == t.root || !n.state.IsTerminal() || len(n.children) > 0 {
		return
	}
	if t.pruneHold > 0 {
		t.pruneQueue = append(t.pruneQueue, n.id)
		return
	}
	t.removeLocked(n)
}

// removeLocked deletes the node from the arena, detaches it from its
// parent, and cascades to the parent if the parent just became a terminal
// childless node.
func (t *Tree) removeLocked(n *node) {
	t.finals[n.id] = t.infoLocked(n)
	delete(t.nodes, n.id)

	t.emitLocked(event.NewNodePrunedEvent(t.treeID, string(n.id)))
	t.log.Debug("node pruned", "node_id", n.id)

	p, ok := t.nodes[n.parent]
	if !ok {
		return
	}
	if i := slices.Index(p.children, n.id); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	if p.id != t.root && p.state.IsTerminal() && len(p.children) == 0 {
		t.removeLocked(p)
	}
}

// flushPrunesLocked processes removals deferred by a pruning hold.
func (t *Tree) flushPrunesLocked() {
	queued := t.pruneQueue
	t.pruneQueue = nil
	for _, id := range queued {
		if n, ok := t.nodes[id]; ok && n.state.IsTerminal() && len(n.children) == 0 {
			t.removeLocked(n)
		}
	}
}

// transitionLocked applies a state change, logs it, and emits the
// corresponding event. Transitions that would move a node backwards along
// the lifecycle indicate a bug in the tree itself and are dropped loudly.
func (t *Tree) transitionLocked(n *node, to State, failure error) {
	from := n.state
	if to.rank() <= from.rank() {
		t.log.Error("invalid state transition dropped",
			"node_id", n.id, "from", from, "to", to, "error", errors.ErrInvalidTransition)
		return
	}
	n.state = to

	failStr := ""
	if failure != nil {
		failStr = failure.Error()
	}
	t.emitLocked(event.NewNodeStateChangedEvent(t.treeID, string(n.id), from.String(), to.String(), failStr))
	t.log.Info("node state changed",
		"node_id", n.id, "label", n.label, "from", from, "to", to, "failure", failStr)
}

// finishLocked marks the whole tree as finished once the root is terminal.
func (t *Tree) finishLocked(root *node) {
	failStr := ""
	if len(t.failures) > 0 {
		failStr = errors.Join(t.failures...).Error()
	}
	t.emitLocked(event.NewTreeFinishedEvent(t.treeID, root.state.String(), failStr))
	t.finished = true
	t.signalLocked()
}

// emitLocked queues an event for the dispatcher. Events are appended under
// the tree lock, which fixes the per-tree total order; the dispatcher
// publishes them outside the lock.
func (t *Tree) emitLocked(e event.Event) {
	t.pending = append(t.pending, e)
	t.signalLocked()
}

func (t *Tree) signalLocked() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// dispatch is the single event dispatcher goroutine. It drains the pending
// queue in order and closes done once the tree is finished and the queue
// is empty.
func (t *Tree) dispatch() {
	for {
		t.mu.Lock()
		batch := t.pending
		t.pending = nil
		finished := t.finished
		t.mu.Unlock()

		if len(batch) == 0 {
			if finished {
				close(t.done)
				return
			}
			<-t.notify
			continue
		}
		for _, e := range batch {
			t.bus.Publish(e)
		}
	}
}
