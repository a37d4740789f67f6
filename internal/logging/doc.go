// Package logging provides structured logging for cyto task trees.
//
// This package wraps Go's log/slog to provide structured, filterable logs
// of tree mutations and synchronizer activity. Every state transition is
// logged with the node id, the transition, and a timestamp, so a tree run
// can be reconstructed after the fact.
//
// # Features
//
//   - JSON or text formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (tree ID, node ID, component)
//   - Log rotation with configurable size limits
//   - Optional gzip compression for rotated logs
//
// # Basic Usage
//
// Create a logger writing to a file:
//
//	logger, err := logging.NewLogger("/var/log/cyto/tree.log", "INFO", "json")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("node spawned", "node_id", id, "label", label)
//
// # Context Propagation
//
// Create child loggers with persistent context attributes:
//
//	treeLogger := logger.WithTree("tree-abc123")
//	nodeLogger := treeLogger.WithNode("node-def456")
//	syncLogger := treeLogger.WithComponent("synchronizer")
//
//	// All logs from nodeLogger include tree_id and node_id
//	nodeLogger.Info("state changed", "old", "running", "new", "completed")
//
// # Log Rotation
//
// For long-running trees, use rotation to prevent unbounded growth:
//
//	config := logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	    Compress:   true,
//	}
//	logger, err := logging.NewLoggerWithRotation(path, "INFO", "json", config)
//
// Rotated files are named tree.log.1, tree.log.2, and so on, with .1 the
// most recent backup. When compression is enabled they become tree.log.1.gz.
//
// # Testing
//
// For testing, use [NopLogger] to discard all log output:
//
//	func TestSomething(t *testing.T) {
//	    logger := logging.NopLogger()
//	    // Use logger in tests without creating files
//	}
package logging
