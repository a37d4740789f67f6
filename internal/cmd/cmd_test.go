package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sbtinstruments/cyto/internal/config"
	"github.com/sbtinstruments/cyto/internal/logging"
	"github.com/sbtinstruments/cyto/internal/mirror"
	"github.com/sbtinstruments/cyto/internal/outline"
	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	if rootCmd.Use != "cyto" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "cyto")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"demo", "show", "watch", "cancel", "config", "logs"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestOpenStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Mirror.Store = "memory"

		store, closer, err := openStore(cfg)
		if err != nil {
			t.Fatalf("openStore failed: %v", err)
		}
		defer func() { _ = closer() }()

		if _, ok := store.(*mirror.MemoryStore); !ok {
			t.Errorf("expected *mirror.MemoryStore, got %T", store)
		}
	})

	t.Run("redis", func(t *testing.T) {
		cfg := config.Default()
		cfg.Mirror.Store = "redis"

		// No connection is made until the store is used
		store, closer, err := openStore(cfg)
		if err != nil {
			t.Fatalf("openStore failed: %v", err)
		}
		if _, ok := store.(*mirror.RedisStore); !ok {
			t.Errorf("expected *mirror.RedisStore, got %T", store)
		}
		_ = closer()
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.Default()
		cfg.Mirror.Store = "carrier-pigeon"

		_, _, err := openStore(cfg)
		if err == nil {
			t.Fatal("expected error for unknown store backend")
		}
		if !strings.Contains(err.Error(), "carrier-pigeon") {
			t.Errorf("error should name the bad backend, got: %v", err)
		}
	})
}

func TestOpenLogger(t *testing.T) {
	t.Run("disabled logging", func(t *testing.T) {
		cfg := config.Default()
		cfg.Logging.Enabled = false

		log, err := openLogger(cfg)
		if err != nil {
			t.Fatalf("openLogger failed: %v", err)
		}
		// Must not create any file
		log.Info("dropped")
		_ = log.Close()
	})

	t.Run("file logging", func(t *testing.T) {
		cfg := config.Default()
		cfg.Logging.File = filepath.Join(t.TempDir(), "cyto.log")
		cfg.Logging.MaxSizeMB = 0

		log, err := openLogger(cfg)
		if err != nil {
			t.Fatalf("openLogger failed: %v", err)
		}
		log.WithTree("t1").Info("hello")
		_ = log.Close()

		entries, err := logging.ReadLogFile(cfg.Logging.File)
		if err != nil {
			t.Fatalf("ReadLogFile failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Message != "hello" {
			t.Errorf("unexpected entries: %+v", entries)
		}
	})
}

func TestCancelCommandWritesMarker(t *testing.T) {
	store := mirror.NewMemoryStore()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := outline.RequestRemoteCancel(ctx, store, "tree-x", "node-y", time.Minute); err != nil {
		t.Fatalf("RequestRemoteCancel failed: %v", err)
	}

	pending, err := store.PendingCancels(ctx, "tree-x")
	if err != nil {
		t.Fatalf("PendingCancels failed: %v", err)
	}
	if len(pending) != 1 || pending[0] != "node-y" {
		t.Errorf("pending cancels = %v, want [node-y]", pending)
	}
}

func TestLogsCommand_RequiresFile(t *testing.T) {
	origFile := logsFile
	defer func() { logsFile = origFile }()
	logsFile = ""

	// With no configured log file the command must fail with a hint
	err := runLogs(logsCmd, nil)
	if err == nil {
		t.Fatal("expected error when no log file is configured")
	}
	if !strings.Contains(err.Error(), "--file") {
		t.Errorf("error should mention --file, got: %v", err)
	}
}

func TestBuildLogFilter(t *testing.T) {
	origLevel, origSince, origGrep := logsLevel, logsSince, logsGrep
	origTree, origNode := logsTreeID, logsNodeID
	defer func() {
		logsLevel, logsSince, logsGrep = origLevel, origSince, origGrep
		logsTreeID, logsNodeID = origTree, origNode
	}()

	logsLevel = "warn"
	logsSince = "1h"
	logsGrep = "fail.*"
	logsTreeID = "tree-1"
	logsNodeID = "node-1"

	filter, re, err := buildLogFilter()
	if err != nil {
		t.Fatalf("buildLogFilter failed: %v", err)
	}

	if filter.Level != logging.LevelWarn {
		t.Errorf("filter.Level = %q, want WARN", filter.Level)
	}
	if filter.TreeID != "tree-1" || filter.NodeID != "node-1" {
		t.Errorf("filter ids = %q/%q, want tree-1/node-1", filter.TreeID, filter.NodeID)
	}
	if filter.StartTime.IsZero() {
		t.Error("filter.StartTime should be set from --since")
	}
	if re == nil || !re.MatchString("failed") {
		t.Error("grep regex should match 'failed'")
	}

	logsSince = "not-a-duration"
	if _, _, err := buildLogFilter(); err == nil {
		t.Error("expected error for bad --since duration")
	}

	logsSince = ""
	logsGrep = "("
	if _, _, err := buildLogFilter(); err == nil {
		t.Error("expected error for bad --grep pattern")
	}
}
