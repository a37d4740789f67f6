package mirror

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sbtinstruments/cyto/internal/errors"
)

// MemoryStore is an in-process Store for tests and single-process demos.
// It is safe for concurrent use. Marker expiry is evaluated lazily on read.
type MemoryStore struct {
	mu sync.Mutex
	// outlines maps outline keys to payloads, cancels maps cancel marker
	// keys to their expiry.
	outlines map[string][]byte
	cancels  map[string]time.Time
	// now is swappable for expiry tests.
	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		outlines: make(map[string][]byte),
		cancels:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// PutOutline overwrites the serialized outline for the tree.
func (s *MemoryStore) PutOutline(_ context.Context, treeID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.outlines[OutlineKey(treeID)] = buf
	return nil
}

// GetOutline returns the latest serialized outline for the tree.
func (s *MemoryStore) GetOutline(_ context.Context, treeID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := OutlineKey(treeID)
	payload, ok := s.outlines[key]
	if !ok {
		return nil, errors.NewStoreError("no outline for tree", errors.ErrNotPublished).
			WithKey(key).WithOp("get_outline").WithRetryable(false)
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return buf, nil
}

// MarkCancel writes a cancellation-intent marker for the node.
func (s *MemoryStore) MarkCancel(_ context.Context, treeID, nodeID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancels[CancelKey(treeID, nodeID)] = s.now().Add(ttl)
	return nil
}

// PendingCancels lists node ids with an unexpired cancellation marker,
// in deterministic (sorted) order. Expired markers are dropped.
func (s *MemoryStore) PendingCancels(_ context.Context, treeID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var ids []string
	for key, expiry := range s.cancels {
		nodeID, ok := nodeFromCancelKey(treeID, key)
		if !ok {
			continue
		}
		if now.After(expiry) {
			delete(s.cancels, key)
			continue
		}
		ids = append(ids, nodeID)
	}
	sort.Strings(ids)
	return ids, nil
}

// ClearCancel removes the node's cancellation marker, if any.
func (s *MemoryStore) ClearCancel(_ context.Context, treeID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cancels, CancelKey(treeID, nodeID))
	return nil
}
