package tasktree

import "context"

// Scope is the handle a body receives to interact with the tree on behalf
// of its own node. It allows spawning children and awaiting their outcome
// without exposing the node arena.
type Scope struct {
	tree *Tree
	id   NodeID
}

// ID returns the id of the node this scope belongs to.
func (s *Scope) ID() NodeID { return s.id }

// Tree returns the identifier of the owning tree.
func (s *Scope) Tree() string { return s.tree.TreeID() }

// Spawn creates a child node under this scope's node. See Tree.Spawn.
func (s *Scope) Spawn(label string, body Body, opts ...SpawnOption) (NodeID, error) {
	return s.tree.Spawn(s.id, label, body, opts...)
}

// Await blocks until the given node is terminal and returns its final
// state. Bodies call this at a suspension point; the context lets the wait
// observe cancellation of the caller itself.
func (s *Scope) Await(ctx context.Context, id NodeID) (State, error) {
	return s.tree.Await(ctx, id)
}

// RequestCancel requests cancellation of another node in the tree. Bodies
// use this to implement timeouts: a watchdog child that cancels its target
// after a delay.
func (s *Scope) RequestCancel(id NodeID) error {
	return s.tree.RequestCancel(id)
}
