// Package event defines event types for decoupling components in cyto.
// These events enable communication between the task tree, the outline
// synchronizer, and observers without requiring direct dependencies.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "node.spawned", "outline.published")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers published by the tree and the synchronizer.
const (
	TypeNodeSpawned      = "node.spawned"
	TypeNodeStateChanged = "node.state_changed"
	TypeNodePruned       = "node.pruned"
	TypeTreeFinished     = "tree.finished"
	TypeOutlinePublished = "outline.published"
	TypeRemoteCancel     = "outline.remote_cancel"
)

// -----------------------------------------------------------------------------
// Node Lifecycle Events
// -----------------------------------------------------------------------------

// NodeSpawnedEvent is emitted when a new node is attached to the tree.
type NodeSpawnedEvent struct {
	baseEvent
	TreeID   string // Tree the node belongs to
	NodeID   string // Unique identifier of the new node
	ParentID string // Parent node id (empty for the root)
	Label    string // Human-readable node label
	State    string // Initial state, always "pending"
}

// NewNodeSpawnedEvent creates a NodeSpawnedEvent.
func NewNodeSpawnedEvent(treeID, nodeID, parentID, label, state string) NodeSpawnedEvent {
	return NodeSpawnedEvent{
		baseEvent: newBaseEvent(TypeNodeSpawned),
		TreeID:    treeID,
		NodeID:    nodeID,
		ParentID:  parentID,
		Label:     label,
		State:     state,
	}
}

// NodeStateChangedEvent is emitted on every node state transition.
// Events for a single node are always observed in emission order.
type NodeStateChangedEvent struct {
	baseEvent
	TreeID   string // Tree the node belongs to
	NodeID   string // Node whose state changed
	OldState string // State before the transition
	NewState string // State after the transition
	Failure  string // Error description, set only when NewState is "failed"
}

// NewNodeStateChangedEvent creates a NodeStateChangedEvent.
func NewNodeStateChangedEvent(treeID, nodeID, oldState, newState, failure string) NodeStateChangedEvent {
	return NodeStateChangedEvent{
		baseEvent: newBaseEvent(TypeNodeStateChanged),
		TreeID:    treeID,
		NodeID:    nodeID,
		OldState:  oldState,
		NewState:  newState,
		Failure:   failure,
	}
}

// NodePrunedEvent is emitted when a terminal childless node is removed
// from the tree.
type NodePrunedEvent struct {
	baseEvent
	TreeID string // Tree the node belonged to
	NodeID string // Node that was removed
}

// NewNodePrunedEvent creates a NodePrunedEvent.
func NewNodePrunedEvent(treeID, nodeID string) NodePrunedEvent {
	return NodePrunedEvent{
		baseEvent: newBaseEvent(TypeNodePruned),
		TreeID:    treeID,
		NodeID:    nodeID,
	}
}

// -----------------------------------------------------------------------------
// Tree Lifecycle Events
// -----------------------------------------------------------------------------

// TreeFinishedEvent is emitted once, after the root reaches a terminal state
// and all preceding node events have been dispatched.
type TreeFinishedEvent struct {
	baseEvent
	TreeID  string // Tree that finished
	Outcome string // Final root state: "completed", "failed", or "cancelled"
	Failure string // Aggregated failure description (empty on success)
}

// NewTreeFinishedEvent creates a TreeFinishedEvent.
func NewTreeFinishedEvent(treeID, outcome, failure string) TreeFinishedEvent {
	return TreeFinishedEvent{
		baseEvent: newBaseEvent(TypeTreeFinished),
		TreeID:    treeID,
		Outcome:   outcome,
		Failure:   failure,
	}
}

// -----------------------------------------------------------------------------
// Outline Events
// -----------------------------------------------------------------------------

// OutlinePublishedEvent is emitted by the synchronizer after a snapshot is
// written to the mirror store.
type OutlinePublishedEvent struct {
	baseEvent
	TreeID    string // Tree whose outline was published
	NodeCount int    // Number of nodes in the published snapshot
	Attempts  int    // Store write attempts used (1 means no retries)
}

// NewOutlinePublishedEvent creates an OutlinePublishedEvent.
func NewOutlinePublishedEvent(treeID string, nodeCount, attempts int) OutlinePublishedEvent {
	return OutlinePublishedEvent{
		baseEvent: newBaseEvent(TypeOutlinePublished),
		TreeID:    treeID,
		NodeCount: nodeCount,
		Attempts:  attempts,
	}
}

// RemoteCancelEvent is emitted by the synchronizer when a cancellation
// marker from the mirror store is translated into a local cancel request.
type RemoteCancelEvent struct {
	baseEvent
	TreeID string // Tree the marker addressed
	NodeID string // Node the marker addressed
}

// NewRemoteCancelEvent creates a RemoteCancelEvent.
func NewRemoteCancelEvent(treeID, nodeID string) RemoteCancelEvent {
	return RemoteCancelEvent{
		baseEvent: newBaseEvent(TypeRemoteCancel),
		TreeID:    treeID,
		NodeID:    nodeID,
	}
}
