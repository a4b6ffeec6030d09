package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if !cfg.Console {
		t.Error("Console should default to true")
	}
}

func TestNewConsoleOnly(t *testing.T) {
	logger, err := New(Config{Level: "info", Console: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("hello")
}

func TestNewWithFileRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wbgrep.log")

	logger, err := New(Config{Level: "debug", FilePath: path, MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("file entry")
	_ = logger.Sync()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected log file at %s: %v", path, err)
	}
}

func TestNewWithNoOutputsReturnsNop(t *testing.T) {
	logger, err := New(Config{Level: "info"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("swallowed")
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	logger, err := New(Config{Level: "not-a-level", Console: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("still works")
}
