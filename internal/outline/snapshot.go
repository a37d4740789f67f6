// Package outline mirrors a live task tree into an external store.
//
// A [Snapshot] is an immutable, serializable projection of the tree's
// topology and per-node state at one point in time. The [Synchronizer]
// folds the tree's events into a shadow model, builds snapshots at
// quiescent points, and publishes them to a mirror store with bounded,
// coalesced write amplification. Out-of-process observers read the store
// with [Observe] and request cancellation of any subtree with
// [RequestRemoteCancel]; the owning process's synchronizer polls those
// markers and translates them into local cancel calls.
package outline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sbtinstruments/cyto/internal/errors"
	"github.com/sbtinstruments/cyto/internal/tasktree"
)

// Record describes one node in a snapshot. ParentID is empty for the root.
type Record struct {
	ID       string         `json:"id"`
	ParentID string         `json:"parent_id,omitempty"`
	Label    string         `json:"label"`
	State    tasktree.State `json:"state"`
}

// Snapshot is a consistent point-in-time projection of a tree: its nodes
// in pre-order (parents before children, children in spawn order) with
// their states. Snapshots are immutable once built; a new mutation always
// produces a new snapshot.
type Snapshot struct {
	TreeID string    `json:"tree_id"`
	Taken  time.Time `json:"taken"`
	Nodes  []Record  `json:"nodes"`
}

// Len returns the number of nodes in the snapshot.
func (s Snapshot) Len() int { return len(s.Nodes) }

// Find returns the record for the given node id.
func (s Snapshot) Find(id string) (Record, bool) {
	for _, r := range s.Nodes {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Root returns the root record (the one without a parent).
func (s Snapshot) Root() (Record, bool) {
	for _, r := range s.Nodes {
		if r.ParentID == "" {
			return r, true
		}
	}
	return Record{}, false
}

// Encode serializes the snapshot as the JSON document stored under the
// tree's outline key.
func (s Snapshot) Encode() ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "encode outline snapshot")
	}
	return payload, nil
}

// Decode parses a serialized snapshot.
func Decode(payload []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "decode outline snapshot")
	}
	return s, nil
}

// Render returns a plain-text indented outline, one node per line, for
// printing to a terminal or log.
func (s Snapshot) Render() string {
	depth := make(map[string]int, len(s.Nodes))
	var b strings.Builder
	for _, r := range s.Nodes {
		d := 0
		if r.ParentID != "" {
			d = depth[r.ParentID] + 1
		}
		depth[r.ID] = d
		fmt.Fprintf(&b, "%s%s [%s]\n", strings.Repeat("    ", d), r.Label, r.State)
	}
	return b.String()
}
