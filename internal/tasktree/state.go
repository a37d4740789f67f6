package tasktree

// State represents the lifecycle state of a node.
type State string

const (
	// StatePending indicates the node is attached but its body has not
	// started running yet.
	StatePending State = "pending"

	// StateRunning indicates the node's body is executing (or, for the
	// root, that the node is supervising live children).
	StateRunning State = "running"

	// StateCancelRequested indicates cancellation has been requested but
	// the body has not yet observed it. Always resolves to StateCancelled.
	StateCancelRequested State = "cancel_requested"

	// StateCancelled indicates the node honored a cancellation request.
	StateCancelled State = "cancelled"

	// StateCompleted indicates the body finished successfully and no
	// relevant child failure was recorded.
	StateCompleted State = "completed"

	// StateFailed indicates the body returned an error, panicked, or
	// (under PolicyIsolate) at least one child failed.
	StateFailed State = "failed"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true if this state represents a final state.
func (s State) IsTerminal() bool {
	return s == StateCancelled || s == StateCompleted || s == StateFailed
}

// rank orders states along the monotonic lifecycle. Transitions may only
// move to a state of strictly higher rank.
func (s State) rank() int {
	switch s {
	case StatePending:
		return 0
	case StateRunning:
		return 1
	case StateCancelRequested:
		return 2
	case StateCancelled, StateCompleted, StateFailed:
		return 3
	default:
		return -1
	}
}

// RankAtLeast reports whether s is at or past other on the lifecycle path.
// Observers use this to fold possibly-duplicated state events without ever
// moving a node backwards.
func (s State) RankAtLeast(other State) bool {
	return s.rank() >= other.rank()
}

// FailurePolicy governs how a node reacts to its children's failures.
type FailurePolicy string

const (
	// PolicyPropagate cancels sibling subtrees and marks the path to the
	// root CancelRequested when a child fails. This is the default.
	PolicyPropagate FailurePolicy = "propagate"

	// PolicyIsolate records a child's failure without cancelling siblings.
	// The node becomes Failed once all children are terminal, but this
	// contained failure does not trigger the node's own parent's policy.
	PolicyIsolate FailurePolicy = "isolate"
)

// String returns the string representation of the policy.
func (p FailurePolicy) String() string {
	return string(p)
}

// NodeInfo is a read-only description of one node, safe to hand to
// observers. ParentID is empty for the root.
type NodeInfo struct {
	ID       NodeID `json:"id"`
	ParentID NodeID `json:"parent_id,omitempty"`
	Label    string `json:"label"`
	State    State  `json:"state"`
	// Failure carries the error description when State is StateFailed.
	Failure string `json:"failure,omitempty"`
}
