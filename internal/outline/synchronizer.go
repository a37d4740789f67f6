package outline

import (
	"context"
	"sync"
	"time"

	"github.com/sbtinstruments/cyto/internal/config"
	"github.com/sbtinstruments/cyto/internal/errors"
	"github.com/sbtinstruments/cyto/internal/event"
	"github.com/sbtinstruments/cyto/internal/logging"
	"github.com/sbtinstruments/cyto/internal/mirror"
	"github.com/sbtinstruments/cyto/internal/tasktree"
)

// SyncState is the synchronizer's own lifecycle state.
type SyncState string

const (
	// SyncIdle indicates the synchronizer is waiting for state changes or
	// the next cancel marker poll.
	SyncIdle SyncState = "idle"

	// SyncPublishing indicates a snapshot write to the store is in flight.
	SyncPublishing SyncState = "publishing"

	// SyncDraining indicates shutdown: at most one more publish (the final
	// coalesced state) and all further work is refused.
	SyncDraining SyncState = "draining"
)

// Config tunes the synchronizer's cadence and retry behavior.
type Config struct {
	// MinPublishInterval is the minimum time between two publishes.
	// State changes inside the window are coalesced into the next one.
	MinPublishInterval time.Duration
	// PollInterval is how often remote cancellation markers are collected.
	PollInterval time.Duration
	// MarkerTTL is the expiry applied to cancellation markers this process
	// writes via RequestRemoteCancel.
	MarkerTTL time.Duration
	// MaxPublishAttempts bounds retries of a publish that hits an
	// unavailable store. Exhausting attempts drops that publish.
	MaxPublishAttempts int
	// RetryBackoff is the base backoff between attempts, doubled each time.
	RetryBackoff time.Duration
}

// DefaultConfig returns the tuning used when no settings are supplied.
func DefaultConfig() Config {
	return Config{
		MinPublishInterval: 100 * time.Millisecond,
		PollInterval:       250 * time.Millisecond,
		MarkerTTL:          30 * time.Second,
		MaxPublishAttempts: 5,
		RetryBackoff:       50 * time.Millisecond,
	}
}

// ConfigFromSettings builds a Config from the resolved application
// settings.
func ConfigFromSettings(cfg *config.Config) Config {
	return Config{
		MinPublishInterval: cfg.Sync.PublishInterval(),
		PollInterval:       cfg.Sync.PollInterval(),
		MarkerTTL:          cfg.Mirror.MarkerTTL(),
		MaxPublishAttempts: cfg.Sync.MaxPublishAttempts,
		RetryBackoff:       cfg.Sync.RetryBackoff(),
	}
}

// shadowNode is the synchronizer's own copy of one node. The shadow model
// is fed purely by events (seeded once from Export), so snapshots never
// need to lock the tree.
type shadowNode struct {
	parent   string
	label    string
	state    tasktree.State
	children []string
}

// Synchronizer owns the mirror side of one tree: it folds tree events into
// a shadow model, publishes coalesced snapshots to the store, and polls the
// store for remote cancellation markers.
type Synchronizer struct {
	tree  *tasktree.Tree
	store mirror.Store
	cfg   Config
	log   *logging.Logger

	mu     sync.Mutex
	nodes  map[string]*shadowNode
	rootID string
	// orphans holds children observed before their parent, keyed by the
	// missing parent id, in arrival order.
	orphans map[string][]string
	dirty   bool
	state   SyncState
	unsub   func()

	dirtyCh chan struct{}
}

// New creates a synchronizer for the tree. It subscribes to the tree's
// events and seeds its shadow model from the tree's current listing, so a
// synchronizer attached to a running tree starts consistent. Call Run to
// start publishing.
func New(tree *tasktree.Tree, store mirror.Store, cfg Config, log *logging.Logger) *Synchronizer {
	if log == nil {
		log = logging.NopLogger()
	}
	s := &Synchronizer{
		tree:    tree,
		store:   store,
		cfg:     cfg,
		log:     log.WithComponent("synchronizer").WithTree(tree.TreeID()),
		nodes:   make(map[string]*shadowNode),
		orphans: make(map[string][]string),
		state:   SyncIdle,
		dirtyCh: make(chan struct{}, 1),
	}

	// Subscribe before seeding: events racing the seed are folded
	// forward-only by state rank, so neither path can regress a node.
	s.unsub = tree.Events().SubscribeAll(s.handleEvent)
	s.seed(tree.Export())
	return s
}

// State returns the synchronizer's current lifecycle state.
func (s *Synchronizer) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the synchronizer until the context is cancelled or the tree
// finishes, then drains: the last pending batch is flushed in one final
// publish and further work is refused.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.log.Info("synchronizer started",
		"publish_interval", s.cfg.MinPublishInterval, "poll_interval", s.cfg.PollInterval)

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()

	var lastPublish time.Time
	for {
		select {
		case <-ctx.Done():
			return s.drain(context.Background())
		case <-s.tree.Done():
			return s.drain(ctx)
		case <-s.dirtyCh:
			s.waitPublishWindow(ctx, lastPublish)
			if s.consumeDirty() {
				if err := s.publish(ctx); err != nil {
					s.log.Warn("outline publish dropped", "error", err)
				}
				lastPublish = time.Now()
			}
		case <-poll.C:
			s.collectRemoteCancels(ctx)
		}
	}
}

// waitPublishWindow blocks until the minimum inter-publish interval has
// elapsed, bounding write amplification under bursty spawning. Shutdown
// cuts the wait short; the trailing state is still flushed.
func (s *Synchronizer) waitPublishWindow(ctx context.Context, lastPublish time.Time) {
	remaining := s.cfg.MinPublishInterval - time.Since(lastPublish)
	if remaining <= 0 {
		return
	}
	select {
	case <-time.After(remaining):
	case <-ctx.Done():
	case <-s.tree.Done():
	}
}

// Flush publishes the current shadow state immediately, outside the
// coalescing window. It fails with ErrSyncDraining once draining.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.state == SyncDraining {
		s.mu.Unlock()
		return errors.NewSyncError("flush rejected", errors.ErrSyncDraining).
			WithTreeID(s.tree.TreeID()).WithState(string(SyncDraining))
	}
	s.mu.Unlock()

	s.consumeDirty()
	return s.publish(ctx)
}

// drain performs the final coalesced publish and moves the synchronizer to
// SyncDraining permanently. Safe to call more than once.
func (s *Synchronizer) drain(ctx context.Context) error {
	s.mu.Lock()
	if s.state == SyncDraining {
		s.mu.Unlock()
		return nil
	}
	s.state = SyncDraining
	dirty := s.dirty
	s.dirty = false
	s.mu.Unlock()

	var err error
	if dirty {
		err = s.publish(ctx)
	}
	s.unsub()
	s.log.Info("synchronizer drained", "final_publish", dirty)
	return err
}

// publish builds a snapshot from the shadow model and writes it to the
// store, retrying with exponential backoff on unavailability. Pruning is
// held for the duration so removals cannot race the in-flight publish.
func (s *Synchronizer) publish(ctx context.Context) error {
	release := s.tree.HoldPruning()
	defer release()

	s.mu.Lock()
	if s.state == SyncIdle {
		s.state = SyncPublishing
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.state == SyncPublishing {
			s.state = SyncIdle
		}
		s.mu.Unlock()
	}()

	payload, err := snap.Encode()
	if err != nil {
		return err
	}

	treeID := s.tree.TreeID()
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxPublishAttempts; attempt++ {
		lastErr = s.store.PutOutline(ctx, treeID, payload)
		if lastErr == nil {
			s.tree.Events().Publish(event.NewOutlinePublishedEvent(treeID, snap.Len(), attempt))
			s.log.Debug("outline published", "nodes", snap.Len(), "attempts", attempt)
			return nil
		}
		if !errors.IsRetryable(lastErr) || attempt == s.cfg.MaxPublishAttempts {
			break
		}
		backoff := s.cfg.RetryBackoff << (attempt - 1)
		s.log.Debug("outline publish retry", "attempt", attempt, "backoff", backoff, "error", lastErr)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return errors.Wrap(lastErr, "publish abandoned")
		}
	}
	return lastErr
}

// collectRemoteCancels polls the store for cancellation markers and
// translates them into local cancel requests. Markers are cleared after
// handling; markers for unknown or already pruned nodes are cleared and
// logged, never fatal. A store read failure only delays collection.
func (s *Synchronizer) collectRemoteCancels(ctx context.Context) {
	treeID := s.tree.TreeID()
	ids, err := s.store.PendingCancels(ctx, treeID)
	if err != nil {
		s.log.Debug("cancel marker poll failed", "error", err)
		return
	}

	for _, nodeID := range ids {
		err := s.tree.RequestCancel(tasktree.NodeID(nodeID))
		switch {
		case err == nil:
			s.tree.Events().Publish(event.NewRemoteCancelEvent(treeID, nodeID))
			s.log.Info("remote cancel applied", "node_id", nodeID)
		case errors.Is(err, errors.ErrUnknownNode):
			s.log.Warn("remote cancel for unknown node", "node_id", nodeID)
		default:
			s.log.Warn("remote cancel failed", "node_id", nodeID, "error", err)
		}
		if clearErr := s.store.ClearCancel(ctx, treeID, nodeID); clearErr != nil {
			s.log.Debug("failed to clear cancel marker", "node_id", nodeID, "error", clearErr)
		}
	}
}

// handleEvent folds one tree event into the shadow model. Called on the
// tree's dispatcher goroutine, in per-tree total order.
func (s *Synchronizer) handleEvent(e event.Event) {
	switch ev := e.(type) {
	case event.NodeSpawnedEvent:
		if ev.TreeID != s.tree.TreeID() {
			return
		}
		s.mu.Lock()
		s.addLocked(ev.NodeID, ev.ParentID, ev.Label, tasktree.State(ev.State))
		s.markDirtyLocked()
		s.mu.Unlock()
	case event.NodeStateChangedEvent:
		if ev.TreeID != s.tree.TreeID() {
			return
		}
		s.mu.Lock()
		s.advanceLocked(ev.NodeID, tasktree.State(ev.NewState))
		s.markDirtyLocked()
		s.mu.Unlock()
	case event.NodePrunedEvent:
		if ev.TreeID != s.tree.TreeID() {
			return
		}
		s.mu.Lock()
		s.removeLocked(ev.NodeID)
		s.markDirtyLocked()
		s.mu.Unlock()
	case event.TreeFinishedEvent:
		if ev.TreeID != s.tree.TreeID() {
			return
		}
		s.mu.Lock()
		s.markDirtyLocked()
		s.mu.Unlock()
	}
}

// seed folds a pre-order tree listing into the shadow model and schedules
// an initial publish.
func (s *Synchronizer) seed(infos []tasktree.NodeInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, info := range infos {
		s.addLocked(string(info.ID), string(info.ParentID), info.Label, info.State)
		s.advanceLocked(string(info.ID), info.State)
	}
	s.markDirtyLocked()
}

// addLocked inserts a node if it is not already known. Children keep their
// spawn order; the node without a parent becomes the root.
func (s *Synchronizer) addLocked(id, parent, label string, state tasktree.State) {
	if _, ok := s.nodes[id]; ok {
		return
	}
	n := &shadowNode{parent: parent, label: label, state: state}
	s.nodes[id] = n

	// Adopt children that arrived before this node did.
	if waiting, ok := s.orphans[id]; ok {
		n.children = append(n.children, waiting...)
		delete(s.orphans, id)
	}

	if parent == "" {
		s.rootID = id
		return
	}
	if p, ok := s.nodes[parent]; ok {
		p.children = append(p.children, id)
	} else {
		s.orphans[parent] = append(s.orphans[parent], id)
	}
}

// advanceLocked moves a node's shadow state forward. Transitions that
// would move the node backwards along the lifecycle are ignored, which
// makes seed/replay overlap harmless.
func (s *Synchronizer) advanceLocked(id string, state tasktree.State) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	if state.RankAtLeast(n.state) {
		n.state = state
	}
}

// removeLocked deletes a node and detaches it from its parent.
func (s *Synchronizer) removeLocked(id string) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	delete(s.nodes, id)
	if p, ok := s.nodes[n.parent]; ok {
		for i, c := range p.children {
			if c == id {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
}

func (s *Synchronizer) markDirtyLocked() {
	s.dirty = true
	select {
	case s.dirtyCh <- struct{}{}:
	default:
	}
}

// consumeDirty clears the dirty flag and reports whether it was set.
func (s *Synchronizer) consumeDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dirty
	s.dirty = false
	return d
}

// snapshotLocked builds an immutable pre-order snapshot of the shadow
// model.
func (s *Synchronizer) snapshotLocked() Snapshot {
	snap := Snapshot{
		TreeID: s.tree.TreeID(),
		Taken:  time.Now().UTC(),
		Nodes:  make([]Record, 0, len(s.nodes)),
	}
	var walk func(id string)
	walk = func(id string) {
		n, ok := s.nodes[id]
		if !ok {
			return
		}
		snap.Nodes = append(snap.Nodes, Record{
			ID:       id,
			ParentID: n.parent,
			Label:    n.label,
			State:    n.state,
		})
		for _, c := range n.children {
			walk(c)
		}
	}
	if s.rootID != "" {
		walk(s.rootID)
	}
	return snap
}

// Observe reads the latest published snapshot for a tree. It fails with
// ErrNotPublished if no snapshot has ever been written for the tree, and
// surfaces ErrStoreUnavailable as-is.
func Observe(ctx context.Context, store mirror.Store, treeID string) (Snapshot, error) {
	payload, err := store.GetOutline(ctx, treeID)
	if err != nil {
		return Snapshot{}, err
	}
	return Decode(payload)
}

// RequestRemoteCancel writes a cancellation-intent marker for the node.
// The owning process's synchronizer collects the marker within one poll
// cycle and translates it into a local cancel request. The marker expires
// after ttl if nobody collects it.
func RequestRemoteCancel(ctx context.Context, store mirror.Store, treeID, nodeID string, ttl time.Duration) error {
	return store.MarkCancel(ctx, treeID, nodeID, ttl)
}
