// Package event provides a pub-sub event bus for decoupled inter-component
// communication in cyto.
//
// The task tree publishes its lifecycle as events rather than calling
// observers directly: the outline synchronizer, loggers, and tests all
// subscribe to the same bus without the tree knowing about any of them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Node lifecycle:
//   - [NodeSpawnedEvent]: Emitted when a node is attached to the tree
//   - [NodeStateChangedEvent]: Emitted on every node state transition
//   - [NodePrunedEvent]: Emitted when a terminal childless node is removed
//
// Tree lifecycle:
//   - [TreeFinishedEvent]: Emitted once the root reaches a terminal state
//
// Outline:
//   - [OutlinePublishedEvent]: Emitted after a snapshot reaches the mirror store
//   - [RemoteCancelEvent]: Emitted when a remote cancellation marker is applied
//
// # Ordering and Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously, in registration order, and are protected against panics -
// a panicking handler will not prevent other handlers from being called.
// The tree publishes through a single dispatcher goroutine, so events for
// one tree arrive in a single total order and events for a single node
// arrive in emission order.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe(event.TypeNodeStateChanged, func(e event.Event) {
//	    changed := e.(event.NodeStateChangedEvent)
//	    log.Printf("node %s: %s -> %s", changed.NodeID, changed.OldState, changed.NewState)
//	})
//
//	// Subscribe to all events (useful for logging)
//	unsub := bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Unsubscribe when done
//	unsub()
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - node.spawned, node.state_changed, node.pruned
//   - tree.finished
//   - outline.published, outline.remote_cancel
package event
