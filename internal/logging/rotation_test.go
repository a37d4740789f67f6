package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates file and parent directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "tree.log")

		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer rw.Close()

		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", path)
		}
	})

	t.Run("records existing file size", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tree.log")
		if err := os.WriteFile(path, []byte("existing content\n"), 0644); err != nil {
			t.Fatalf("failed to seed log file: %v", err)
		}

		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer rw.Close()

		if rw.CurrentSize() != int64(len("existing content\n")) {
			t.Errorf("CurrentSize() = %d, want %d", rw.CurrentSize(), len("existing content\n"))
		}
	})
}

func TestRotatingWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 0})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}

	msg := []byte("hello rotation\n")
	n, err := rw.Write(msg)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(msg) {
		t.Errorf("Write returned %d, want %d", n, len(msg))
	}
	if rw.CurrentSize() != int64(len(msg)) {
		t.Errorf("CurrentSize() = %d, want %d", rw.CurrentSize(), len(msg))
	}

	rw.Close()

	if _, err := rw.Write(msg); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestRotatingWriterRotation(t *testing.T) {
	// 1 MB limit; a single write never exceeds it, so force rotation by
	// pre-setting the tracked size.
	path := filepath.Join(t.TempDir(), "tree.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer rw.Close()

	for round := 1; round <= 3; round++ {
		rw.mu.Lock()
		rw.currentSize = rw.maxSizeB // next write triggers rotation
		rw.mu.Unlock()

		if _, err := rw.Write([]byte(fmt.Sprintf("round %d\n", round))); err != nil {
			t.Fatalf("Write in round %d failed: %v", round, err)
		}
	}

	// After three rotations with MaxBackups=2: live file plus .1 and .2
	if _, err := os.Stat(path); err != nil {
		t.Errorf("live log file missing: %v", err)
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("backup .1 missing: %v", err)
	}
	if _, err := os.Stat(path + ".2"); err != nil {
		t.Errorf("backup .2 missing: %v", err)
	}
	if _, err := os.Stat(path + ".3"); err == nil {
		t.Error("backup .3 should not exist with MaxBackups=2")
	}

	// Newest backup holds the round before the last rotation
	backup1, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	if !strings.Contains(string(backup1), "round 2") {
		t.Errorf("backup .1 = %q, want it to contain round 2", string(backup1))
	}
}

func TestRotatingWriterCompression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2, Compress: true})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer rw.Close()

	if _, err := rw.Write([]byte("first generation\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rw.mu.Lock()
	rw.currentSize = rw.maxSizeB
	rw.mu.Unlock()

	if _, err := rw.Write([]byte("second generation\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Compression runs asynchronously
	gzPath := path + ".1.gz"
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(gzPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("compressed backup %s never appeared", gzPath)
		}
		time.Sleep(10 * time.Millisecond)
	}

	gzFile, err := os.Open(gzPath)
	if err != nil {
		t.Fatalf("failed to open compressed backup: %v", err)
	}
	defer gzFile.Close()

	gzReader, err := gzip.NewReader(gzFile)
	if err != nil {
		t.Fatalf("failed to create gzip reader: %v", err)
	}
	defer gzReader.Close()

	data, err := io.ReadAll(gzReader)
	if err != nil {
		t.Fatalf("failed to decompress backup: %v", err)
	}
	if !strings.Contains(string(data), "first generation") {
		t.Errorf("decompressed backup = %q, want first generation content", string(data))
	}

	// Uncompressed original should be gone
	deadline = time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path + ".1"); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("uncompressed backup was not removed after compression")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRotatingWriterConcurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 0})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				fmt.Fprintf(rw, "writer %d line %d\n", n, j)
			}
		}(i)
	}
	wg.Wait()

	rw.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 500 {
		t.Errorf("expected 500 lines, got %d", len(lines))
	}
}

func TestRotatingWriterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.log")

	rw, err := NewRotatingWriter(path, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}

	if err := rw.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
	// Second close is a no-op
	if err := rw.Close(); err != nil {
		t.Errorf("Second Close() returned error: %v", err)
	}
	if err := rw.Sync(); err != nil {
		t.Errorf("Sync() after Close returned error: %v", err)
	}
}

func TestNewLoggerWithRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.log")

	logger, err := NewLoggerWithRotation(path, LevelInfo, FormatJSON, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLoggerWithRotation failed: %v", err)
	}

	logger.Info("rotated logger message", "key", "value")

	if err := logger.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "rotated logger message") {
		t.Errorf("log file missing expected message: %q", string(content))
	}
}

func TestDefaultRotationConfig(t *testing.T) {
	config := DefaultRotationConfig()

	if config.MaxSizeMB != 10 {
		t.Errorf("MaxSizeMB = %d, want 10", config.MaxSizeMB)
	}
	if config.MaxBackups != 3 {
		t.Errorf("MaxBackups = %d, want 3", config.MaxBackups)
	}
	if config.Compress {
		t.Error("Compress should default to false")
	}
}
