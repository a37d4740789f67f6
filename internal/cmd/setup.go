package cmd

import (
	"fmt"
	"strings"

	"github.com/sbtinstruments/cyto/internal/config"
	"github.com/sbtinstruments/cyto/internal/logging"
	"github.com/sbtinstruments/cyto/internal/mirror"
)

// openStore builds the mirror store selected by the configuration.
// The returned closer releases the store's resources and is a no-op
// for the in-memory backend.
func openStore(cfg *config.Config) (mirror.Store, func() error, error) {
	switch strings.ToLower(cfg.Mirror.Store) {
	case "memory":
		return mirror.NewMemoryStore(), func() error { return nil }, nil
	case "redis":
		store := mirror.NewRedisStore(cfg.Mirror.RedisAddr, cfg.Mirror.RedisPassword, cfg.Mirror.RedisDB)
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown mirror store %q (valid: %s)",
			cfg.Mirror.Store, strings.Join(config.ValidStoreKinds(), ", "))
	}
}

// openLogger builds a logger from the logging configuration.
// Returns a NopLogger when logging is disabled.
func openLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}

	level := logging.ParseLevel(cfg.Logging.Level)

	if cfg.Logging.File != "" && cfg.Logging.MaxSizeMB > 0 {
		return logging.NewLoggerWithRotation(cfg.Logging.File, level, cfg.Logging.Format, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
	}

	return logging.NewLogger(cfg.Logging.File, level, cfg.Logging.Format)
}
