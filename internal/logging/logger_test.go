package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates log file at given path", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "logs", "tree.log")

		logger, err := NewLogger(logPath, LevelDebug, FormatJSON)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
	})

	t.Run("writes to stderr when path is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo, FormatJSON)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if logger.closer != nil {
			t.Error("expected closer to be nil when path is empty")
		}
	})

	t.Run("defaults to INFO level for invalid level string", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "tree.log")

		logger, err := NewLogger(logPath, "invalid", FormatJSON)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if logger.logger == nil {
			t.Error("expected logger to be created")
		}
	})
}

func TestLogLevels(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tree.log")

	logger, err := NewLogger(logPath, LevelDebug, FormatJSON)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(lines))
	}

	expectedLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	expectedMsgs := []string{"debug message", "info message", "warn message", "error message"}

	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
			continue
		}

		if entry["level"] != expectedLevels[i] {
			t.Errorf("line %d: expected level %s, got %v", i, expectedLevels[i], entry["level"])
		}
		if entry["msg"] != expectedMsgs[i] {
			t.Errorf("line %d: expected msg %s, got %v", i, expectedMsgs[i], entry["msg"])
		}
		if entry["key"] != "value" {
			t.Errorf("line %d: expected key=value, got key=%v", i, entry["key"])
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tree.log")

	// WARN level should filter out DEBUG and INFO
	logger, err := NewLogger(logPath, LevelWarn, FormatJSON)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines (WARN and ERROR only), got %d: %s", len(lines), string(content))
	}
}

func TestTextFormat(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tree.log")

	logger, err := NewLogger(logPath, LevelInfo, FormatText)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("text message", "key", "value")
	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	line := strings.TrimSpace(string(content))
	if !strings.Contains(line, "msg=\"text message\"") {
		t.Errorf("expected slog text format, got %q", line)
	}
	if json.Valid(content) {
		t.Error("text format output should not be JSON")
	}
}

func TestContextPropagation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tree.log")

	logger, err := NewLogger(logPath, LevelInfo, FormatJSON)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	childLogger := logger.WithTree("tree-123").WithNode("node-456").WithComponent("synchronizer")

	childLogger.Info("test message", "extra", "data")

	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry["tree_id"] != "tree-123" {
		t.Errorf("expected tree_id=tree-123, got %v", entry["tree_id"])
	}
	if entry["node_id"] != "node-456" {
		t.Errorf("expected node_id=node-456, got %v", entry["node_id"])
	}
	if entry["component"] != "synchronizer" {
		t.Errorf("expected component=synchronizer, got %v", entry["component"])
	}
	if entry["extra"] != "data" {
		t.Errorf("expected extra=data, got %v", entry["extra"])
	}
}

func TestWith(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tree.log")

	logger, err := NewLogger(logPath, LevelInfo, FormatJSON)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	childLogger := logger.With("foo", "bar", "count", 42)
	childLogger.Info("test message")

	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %v", entry["foo"])
	}
	// JSON numbers are float64
	if entry["count"] != float64(42) {
		t.Errorf("expected count=42, got %v", entry["count"])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()

	// These should not panic
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	if err := logger.Close(); err != nil {
		t.Errorf("NopLogger.Close() returned error: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"info", LevelInfo},
		{"WARN", LevelWarn},
		{"warn", LevelWarn},
		{"ERROR", LevelError},
		{"error", LevelError},
		{"invalid", LevelInfo},
		{"", LevelInfo},
	}

	for _, tc := range tests {
		result := ParseLevel(tc.input)
		if result != tc.expected {
			t.Errorf("ParseLevel(%q) = %q, expected %q", tc.input, result, tc.expected)
		}
	}
}

func TestValidLevels(t *testing.T) {
	levels := ValidLevels()

	expected := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if len(levels) != len(expected) {
		t.Fatalf("expected %d levels, got %d", len(expected), len(levels))
	}

	for i, level := range levels {
		if level != expected[i] {
			t.Errorf("ValidLevels()[%d] = %q, expected %q", i, level, expected[i])
		}
	}
}

func TestClose(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tree.log")

	logger, err := NewLogger(logPath, LevelInfo, FormatJSON)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("test message")

	if err := logger.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}

	// Second close should be a no-op
	if err := logger.Close(); err != nil {
		t.Errorf("Second Close() returned error: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	if len(content) == 0 {
		t.Error("log file is empty, expected content")
	}
}

func TestConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tree.log")

	logger, err := NewLogger(logPath, LevelInfo, FormatJSON)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			for j := 0; j < 100; j++ {
				logger.Info("concurrent write", "goroutine", n, "iteration", j)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 1000 {
		t.Errorf("expected 1000 log lines, got %d", len(lines))
	}

	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
	}
}
