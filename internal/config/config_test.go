package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q, want default", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.Model != "qwen3-embedding:0.6b" {
		t.Errorf("Ollama.Model = %q, want default", cfg.Ollama.Model)
	}
	if cfg.Indexing.BatchSize != 10 {
		t.Errorf("Indexing.BatchSize = %d, want 10", cfg.Indexing.BatchSize)
	}
	if cfg.Indexing.MaxFileSize != 1024*1024 {
		t.Errorf("Indexing.MaxFileSize = %d, want 1MiB", cfg.Indexing.MaxFileSize)
	}
	if cfg.Search.MaxResults != 10 {
		t.Errorf("Search.MaxResults = %d, want 10", cfg.Search.MaxResults)
	}
	if cfg.Search.ShowContent {
		t.Error("Search.ShowContent should default to false")
	}
}

func TestLoadWithNoFileUsesDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Ollama.Model != "qwen3-embedding:0.6b" {
		t.Errorf("Ollama.Model = %q, want default", cfg.Ollama.Model)
	}
	if cfg.Indexing.Concurrency != 8 {
		t.Errorf("Indexing.Concurrency = %d, want 8", cfg.Indexing.Concurrency)
	}
}

func TestLoadPrefersWbgreprc(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, ".wbgreprc"), `{"ollama":{"model":"custom-model"}}`)
	write(t, filepath.Join(root, ".wbgreprc.json"), `{"ollama":{"model":"wrong-model"}}`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Ollama.Model != "custom-model" {
		t.Errorf("Ollama.Model = %q, want %q (first candidate should win)", cfg.Ollama.Model, "custom-model")
	}
}

func TestLoadFallsBackToThirdCandidate(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "wbgrep.config.json"), `{"indexing":{"batchsize":25}}`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Indexing.BatchSize != 25 {
		t.Errorf("Indexing.BatchSize = %d, want 25", cfg.Indexing.BatchSize)
	}
}

func TestLoadMergesUnsetFieldsWithDefaults(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, ".wbgreprc.json"), `{"search":{"maxresults":25}}`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Search.MaxResults != 25 {
		t.Errorf("Search.MaxResults = %d, want 25", cfg.Search.MaxResults)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL should remain default, got %q", cfg.Ollama.BaseURL)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, ".wbgreprc.json"), `{"ollama":{"model":"from-file"}}`)
	t.Setenv("WBGREP_OLLAMA_MODEL", "from-env")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Ollama.Model != "from-env" {
		t.Errorf("Ollama.Model = %q, want env override %q", cfg.Ollama.Model, "from-env")
	}
}

func TestStoreDirAndJournalPath(t *testing.T) {
	root := "/home/user/repo"
	if got, want := StoreDir(root), filepath.Join(root, ".wb-grep", "vectors"); got != want {
		t.Errorf("StoreDir() = %q, want %q", got, want)
	}
	if got, want := JournalPath(root), filepath.Join(root, ".wb-grep", "state.json"); got != want {
		t.Errorf("JournalPath() = %q, want %q", got, want)
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
