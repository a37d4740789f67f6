// Package tasktree implements a supervised tree of cooperating tasks.
//
// A [Tree] owns a hierarchy of nodes, each representing one unit of work.
// Nodes are spawned under a parent, run their body in a goroutine, and move
// through a monotonic lifecycle: Pending, Running, CancelRequested, then one
// of the terminal states Completed, Failed, or Cancelled. A node reaches a
// terminal state only after all of its children have.
//
// # Supervision
//
// Failure handling is governed by each node's [FailurePolicy]:
//
//   - [PolicyPropagate] (the default): a child's failure cancels its sibling
//     subtrees and marks the path to the root as CancelRequested (fail-fast).
//   - [PolicyIsolate]: a child's failure is recorded on the node; siblings
//     keep running and the node itself becomes Failed once all children are
//     terminal. Such a contained failure does not trigger the node's own
//     parent's policy.
//
// # Cancellation
//
// Cancellation is cooperative. [Tree.RequestCancel] marks the target and
// every live descendant depth-first and cancels their body contexts before
// it returns, so no new descendant can be spawned under a marked node. A
// body that never observes its context never reaches Cancelled; the tree
// does not forcibly terminate anything.
//
// # Observation
//
// Every spawn, state transition, and prune is published on the tree's event
// bus in a single per-tree total order. The outline package subscribes to
// these events to mirror the tree into an external store.
package tasktree
