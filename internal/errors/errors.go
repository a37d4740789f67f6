// Package errors provides centralized error definitions and error handling
// utilities for the cyto codebase. It defines the error taxonomy of the task
// tree and its mirror store, semantic error types with context wrapping, and
// error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - TreeError: errors raised by task tree operations (spawn, cancel, await)
//   - StoreError: errors raised by mirror store reads and writes
//   - SyncError: errors raised by the outline synchronizer
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewTreeError("spawn rejected", errors.ErrTreeClosed).WithNodeID(id)
//	err := errors.NewStoreError("publish outline", errors.ErrStoreUnavailable).WithKey(key)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrUnknownNode) { ... }
//
//	var storeErr *errors.StoreError
//	if errors.As(err, &storeErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Errors carry a severity (Debug through Critical) and a retryable flag.
// Contract violations (ErrTreeClosed, ErrUnknownNode) are never retryable;
// mirror store I/O failures (ErrStoreUnavailable) are.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Task tree sentinel errors
var (
	// ErrTreeClosed indicates an operation on a node that is terminal or
	// already cancelling. Spawning under such a node is a contract violation,
	// surfaced immediately and never retried.
	ErrTreeClosed = New("tree closed")
	// ErrUnknownNode indicates a reference to a node id that is not in the
	// tree, either because it never existed or because it has been pruned.
	ErrUnknownNode = New("unknown node")
	// ErrInvalidTransition indicates a state change that violates the
	// node lifecycle. It signals a bug in the tree itself, not in callers.
	ErrInvalidTransition = New("invalid state transition")
)

// Mirror store sentinel errors
var (
	// ErrStoreUnavailable indicates a mirror store I/O failure. Publishes
	// hitting it are retried with backoff; observer reads surface it as-is.
	ErrStoreUnavailable = New("mirror store unavailable")
	// ErrNotPublished indicates that no outline has ever been written for
	// the queried tree id.
	ErrNotPublished = New("outline not published")
)

// Synchronizer sentinel errors
var (
	// ErrSyncDraining indicates work submitted to a synchronizer that is
	// shutting down and refuses everything past its final publish.
	ErrSyncDraining = New("synchronizer draining")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// CytoError is the base interface for all cyto errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type CytoError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// TreeError represents errors raised by task tree operations.
//
// Example:
//
//	err := errors.NewTreeError("spawn rejected", errors.ErrTreeClosed).WithNodeID("a1b2")
//	fmt.Println(err) // "tree error [node=a1b2]: spawn rejected: tree closed"
type TreeError struct {
	baseError
	NodeID string
	Op     string
}

// NewTreeError creates a new TreeError.
func NewTreeError(message string, cause error) *TreeError {
	return &TreeError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
	}
}

// WithNodeID adds the node id the operation referred to.
func (e *TreeError) WithNodeID(id string) *TreeError {
	e.NodeID = id
	return e
}

// WithOp adds the name of the failing operation.
func (e *TreeError) WithOp(op string) *TreeError {
	e.Op = op
	return e
}

// WithSeverity sets the error severity.
func (e *TreeError) WithSeverity(s Severity) *TreeError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *TreeError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.NodeID != "" {
		parts = append(parts, fmt.Sprintf("node=%s", e.NodeID))
	}

	prefix := "tree error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("tree error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TreeError) Is(target error) bool {
	if _, ok := target.(*TreeError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StoreError represents errors raised by mirror store reads and writes.
//
// Example:
//
//	err := errors.NewStoreError("publish outline", errors.ErrStoreUnavailable).
//		WithKey("outline:tree-1")
type StoreError struct {
	baseError
	Key string
	Op  string
}

// NewStoreError creates a new StoreError. Store errors default to retryable
// because mirror store I/O is transient by nature; wrap ErrNotPublished with
// WithRetryable(false) when the miss is definitive.
func NewStoreError(message string, cause error) *StoreError {
	return &StoreError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityWarning,
			retryable: true,
		},
	}
}

// WithKey adds the store key the operation touched.
func (e *StoreError) WithKey(key string) *StoreError {
	e.Key = key
	return e
}

// WithOp adds the name of the failing operation.
func (e *StoreError) WithOp(op string) *StoreError {
	e.Op = op
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *StoreError) WithRetryable(r bool) *StoreError {
	e.retryable = r
	return e
}

// WithSeverity sets the error severity.
func (e *StoreError) WithSeverity(s Severity) *StoreError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *StoreError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}

	prefix := "store error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("store error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StoreError) Is(target error) bool {
	if _, ok := target.(*StoreError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SyncError represents errors raised by the outline synchronizer.
type SyncError struct {
	baseError
	TreeID string
	State  string
}

// NewSyncError creates a new SyncError.
func NewSyncError(message string, cause error) *SyncError {
	return &SyncError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityWarning,
			retryable: false,
		},
	}
}

// WithTreeID adds the tree id the synchronizer serves.
func (e *SyncError) WithTreeID(id string) *SyncError {
	e.TreeID = id
	return e
}

// WithState adds the synchronizer state at the time of the error.
func (e *SyncError) WithState(state string) *SyncError {
	e.State = state
	return e
}

// Error returns the formatted error message.
func (e *SyncError) Error() string {
	var parts []string
	if e.TreeID != "" {
		parts = append(parts, fmt.Sprintf("tree=%s", e.TreeID))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}

	prefix := "sync error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("sync error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SyncError) Is(target error) bool {
	if _, ok := target.(*SyncError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error might succeed on retry.
// This checks for:
//   - Errors implementing CytoError with IsRetryable() returning true
//   - Errors wrapping ErrStoreUnavailable
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	    return retry(operation)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var cytoErr CytoError
	if As(err, &cytoErr) {
		return cytoErr.IsRetryable()
	}

	return Is(err, ErrStoreUnavailable)
}

// IsContractViolation returns true for errors that indicate the caller broke
// the tree's usage contract. These are surfaced immediately and never retried.
func IsContractViolation(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrTreeClosed) || Is(err, ErrUnknownNode)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement CytoError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var cytoErr CytoError
	if As(err, &cytoErr) {
		return cytoErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to publish outline")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to cancel node %s", nodeID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
