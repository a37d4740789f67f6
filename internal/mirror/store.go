// Package mirror defines the key-value capability the outline synchronizer
// publishes through, plus the in-memory and Redis implementations of it.
//
// The key layout is fixed:
//
//	outline:{tree_id}                  serialized outline snapshot
//	outline:{tree_id}:cancel:{node_id} cancellation-intent marker (with TTL)
//
// The outline key is written last-write-wins; exactly one process is
// expected to own a given tree. Every operation may fail or race with other
// processes, and callers never assume atomicity across keys.
package mirror

import (
	"context"
	"strings"
	"time"
)

// Store is the capability the synchronizer needs from an external
// key-value service. Implementations map their native errors into the
// shared taxonomy: a missing outline is ErrNotPublished and I/O failures
// are ErrStoreUnavailable (retryable).
type Store interface {
	// PutOutline overwrites the serialized outline for the tree.
	PutOutline(ctx context.Context, treeID string, payload []byte) error

	// GetOutline returns the latest serialized outline for the tree.
	GetOutline(ctx context.Context, treeID string) ([]byte, error)

	// MarkCancel writes a cancellation-intent marker for the node with the
	// given expiry. Markers not collected within the TTL are dropped.
	MarkCancel(ctx context.Context, treeID, nodeID string, ttl time.Duration) error

	// PendingCancels lists node ids with an unexpired cancellation marker.
	PendingCancels(ctx context.Context, treeID string) ([]string, error)

	// ClearCancel removes the node's cancellation marker, if any.
	ClearCancel(ctx context.Context, treeID, nodeID string) error
}

// OutlineKey returns the store key holding the tree's outline.
func OutlineKey(treeID string) string {
	return "outline:" + treeID
}

// CancelKey returns the store key holding the node's cancellation marker.
func CancelKey(treeID, nodeID string) string {
	return cancelPrefix(treeID) + nodeID
}

// cancelPrefix is the shared prefix of all cancellation marker keys for a
// tree, scanned by PendingCancels.
func cancelPrefix(treeID string) string {
	return "outline:" + treeID + ":cancel:"
}

// nodeFromCancelKey extracts the node id from a cancellation marker key.
// Returns false if the key does not belong to the tree's cancel namespace.
func nodeFromCancelKey(treeID, key string) (string, bool) {
	nodeID, found := strings.CutPrefix(key, cancelPrefix(treeID))
	if !found || nodeID == "" {
		return "", false
	}
	return nodeID, true
}
