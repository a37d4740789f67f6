package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "sync.publish_interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"json", "text"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateMirror()...)
	errors = append(errors, c.validateSync()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateTUI()...)

	return errors
}

// validateMirror validates the MirrorConfig
func (c *Config) validateMirror() []ValidationError {
	var errors []ValidationError

	if c.Mirror.Store != "" && !IsValidStoreKind(c.Mirror.Store) {
		errors = append(errors, ValidationError{
			Field:   "mirror.store",
			Value:   c.Mirror.Store,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStoreKinds(), ", ")),
		})
	}

	if c.Mirror.Store == "redis" && c.Mirror.RedisAddr == "" {
		errors = append(errors, ValidationError{
			Field:   "mirror.redis_addr",
			Value:   c.Mirror.RedisAddr,
			Message: "must be set when mirror.store is redis",
		})
	}

	if c.Mirror.RedisDB < 0 {
		errors = append(errors, ValidationError{
			Field:   "mirror.redis_db",
			Value:   c.Mirror.RedisDB,
			Message: "must be non-negative",
		})
	}

	if c.Mirror.MarkerTTLSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "mirror.marker_ttl_seconds",
			Value:   c.Mirror.MarkerTTLSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

// validateSync validates the SyncConfig
func (c *Config) validateSync() []ValidationError {
	var errors []ValidationError

	if c.Sync.PublishIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.publish_interval_ms",
			Value:   c.Sync.PublishIntervalMs,
			Message: "must be non-negative",
		})
	}

	if c.Sync.PollIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.poll_interval_ms",
			Value:   c.Sync.PollIntervalMs,
			Message: "must be positive",
		})
	}

	if c.Sync.MaxPublishAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "sync.max_publish_attempts",
			Value:   c.Sync.MaxPublishAttempts,
			Message: "must be at least 1",
		})
	}

	if c.Sync.RetryBackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.retry_backoff_ms",
			Value:   c.Sync.RetryBackoffMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.Format != "" && !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.RefreshIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "tui.refresh_interval_ms",
			Value:   c.TUI.RefreshIntervalMs,
			Message: "must be positive",
		})
	}

	return errors
}
