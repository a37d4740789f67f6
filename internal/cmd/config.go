package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sbtinstruments/cyto/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify cyto configuration",
	Long: `View or modify cyto configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  cyto config set mirror.store redis
  cyto config set sync.publish_interval_ms 250
  cyto config set logging.level debug

Valid keys:
  mirror.store              - Mirror store backend (memory, redis)
  mirror.redis_addr         - Redis host:port
  mirror.redis_db           - Redis database number
  mirror.marker_ttl_seconds - Expiry of cancellation-intent markers
  sync.publish_interval_ms  - Minimum interval between outline publishes
  sync.poll_interval_ms     - Cancel marker poll interval
  sync.max_publish_attempts - Publish retries before a publish is dropped
  sync.retry_backoff_ms     - Base backoff between publish retries
  logging.enabled           - Enable logging (true/false)
  logging.level             - Minimum log level (debug/info/warn/error)
  logging.format            - Log output format (json/text)
  logging.file              - Log file path (empty logs to stderr)
  tui.refresh_interval_ms   - Watcher refresh interval`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/cyto/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Println("mirror:")
	fmt.Printf("  store: %s\n", cfg.Mirror.Store)
	fmt.Printf("  redis_addr: %s\n", cfg.Mirror.RedisAddr)
	fmt.Printf("  redis_db: %d\n", cfg.Mirror.RedisDB)
	fmt.Printf("  marker_ttl_seconds: %d\n", cfg.Mirror.MarkerTTLSeconds)

	fmt.Println("sync:")
	fmt.Printf("  publish_interval_ms: %d\n", cfg.Sync.PublishIntervalMs)
	fmt.Printf("  poll_interval_ms: %d\n", cfg.Sync.PollIntervalMs)
	fmt.Printf("  max_publish_attempts: %d\n", cfg.Sync.MaxPublishAttempts)
	fmt.Printf("  retry_backoff_ms: %d\n", cfg.Sync.RetryBackoffMs)

	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  format: %s\n", cfg.Logging.Format)
	fmt.Printf("  file: %s\n", cfg.Logging.File)

	fmt.Println("tui:")
	fmt.Printf("  refresh_interval_ms: %d\n", cfg.TUI.RefreshIntervalMs)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Validate the key exists
	validKeys := map[string]string{
		"mirror.store":              "string",
		"mirror.redis_addr":         "string",
		"mirror.redis_password":     "string",
		"mirror.redis_db":           "int",
		"mirror.marker_ttl_seconds": "int",
		"sync.publish_interval_ms":  "int",
		"sync.poll_interval_ms":     "int",
		"sync.max_publish_attempts": "int",
		"sync.retry_backoff_ms":     "int",
		"logging.enabled":           "bool",
		"logging.level":             "string",
		"logging.format":            "string",
		"logging.file":              "path",
		"tui.refresh_interval_ms":   "int",
	}

	keyType, ok := validKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'cyto config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue interface{}
	switch keyType {
	case "string":
		if key == "mirror.store" && !config.IsValidStoreKind(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidStoreKinds(), ", "))
		}
		typedValue = value
	case "path":
		typedValue = value
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = value == "true"
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	fmt.Printf("Config saved to %s\n", configFile)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'cyto config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Cyto Configuration

# Mirror store the outline is published to
mirror:
  # Store backend: memory (in-process only) or redis
  store: memory
  redis_addr: localhost:6379
  redis_db: 0
  # Expiry of cancellation-intent markers, in seconds
  marker_ttl_seconds: 30

# Outline synchronizer cadence
sync:
  # Minimum interval between two outline publishes, in milliseconds
  publish_interval_ms: 100
  # How often to poll the store for remote cancel markers
  poll_interval_ms: 250
  # Publish retries against an unavailable store before dropping
  max_publish_attempts: 5
  # Base backoff between publish retries, doubled per attempt
  retry_backoff_ms: 50

# Structured logging
logging:
  enabled: true
  # debug, info, warn, error
  level: info
  # json or text
  format: json
  # Log file path (empty logs to stderr)
  file: ""

# Outline watcher UI
tui:
  refresh_interval_ms: 500
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	fmt.Println("Edit this file to customize cyto's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Println("\nSearch paths:")
	fmt.Printf("  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Printf("  2. $HOME/.config/cyto/config.yaml\n")
	fmt.Printf("  3. ./config.yaml (current directory)\n")
	fmt.Println("\nEnvironment variables: CYTO_* (e.g., CYTO_MIRROR_REDIS_ADDR)")

	return nil
}
