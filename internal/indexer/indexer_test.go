package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wb200/wbgrep/internal/chunker"
	"github.com/wb200/wbgrep/internal/journal"
	"github.com/wb200/wbgrep/internal/vectorstore"
)

// stubEmbedder returns deterministic, distinguishable vectors without
// touching the network, grounded on the teacher's MockEmbedder pattern.
type stubEmbedder struct {
	calls int
	fail  bool
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		s.calls++
		v := make([]float32, vectorstore.Dimension)
		for j, c := range t {
			v[j%len(v)] += float32(c)
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func newTestIndexer(t *testing.T, root string) (*Indexer, *stubEmbedder) {
	t.Helper()
	store, err := vectorstore.Open(filepath.Join(t.TempDir(), "vectors.db"))
	if err != nil {
		t.Fatalf("vectorstore.Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	j := journal.New(filepath.Join(t.TempDir(), "state.json"))
	emb := &stubEmbedder{}
	idx := New(root, chunker.New(chunker.DefaultConfig()), emb, store, j, DefaultConfig())
	return idx, emb
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReconcileEmptyFileSkipped(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "empty.go")
	writeFile(t, path, "")

	idx, _ := newTestIndexer(t, root)
	result := idx.Reconcile(context.Background(), path, false)
	if !result.Skipped {
		t.Error("expected empty file to be skipped")
	}
}

func TestReconcileOversizeFileSkipped(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "big.go")
	writeFile(t, path, "package main\n")

	idx, _ := newTestIndexer(t, root)
	idx.cfg.MaxFileSize = 1 // any real file now exceeds the cap

	result := idx.Reconcile(context.Background(), path, false)
	if !result.Skipped {
		t.Error("expected oversize file to be skipped")
	}
}

func TestReconcileBinaryFileSkipped(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "data.bin")
	content := make([]byte, 100)
	for i := range content {
		content[i] = 'a'
	}
	content[10] = 0
	content[20] = 0
	writeFile(t, path, string(content))

	idx, _ := newTestIndexer(t, root)
	result := idx.Reconcile(context.Background(), path, false)
	if !result.Skipped {
		t.Error("expected file with >1 NUL byte to be skipped as binary")
	}
}

func TestReconcileSimpleFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.py")
	content := "def f():\n    return 1\n"
	writeFile(t, path, content)

	idx, _ := newTestIndexer(t, root)
	result := idx.Reconcile(context.Background(), path, false)
	if result.Err != nil {
		t.Fatalf("Reconcile failed: %v", result.Err)
	}
	if result.Skipped {
		t.Fatal("expected file to be indexed, not skipped")
	}
	if result.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1", result.Chunks)
	}

	entry, ok := idx.journal.Get(path)
	if !ok {
		t.Fatal("expected journal entry")
	}
	if entry.ChunkCount != 1 {
		t.Errorf("ChunkCount = %d, want 1", entry.ChunkCount)
	}

	count, err := idx.store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("store Count() = %d, want 1", count)
	}
}

func TestReconcileUnchangedFileIsNoop(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.py")
	writeFile(t, path, "def f():\n    return 1\n")

	idx, emb := newTestIndexer(t, root)
	first := idx.Reconcile(context.Background(), path, false)
	if first.Skipped {
		t.Fatal("first reconcile should not be skipped")
	}
	callsAfterFirst := emb.calls

	second := idx.Reconcile(context.Background(), path, false)
	if !second.Skipped {
		t.Error("second reconcile of an unchanged file should be skipped")
	}
	if emb.calls != callsAfterFirst {
		t.Error("unchanged file should perform zero embedding calls")
	}
}

func TestReconcileEditedFileReplacesChunks(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.py")
	writeFile(t, path, "def f():\n    return 1\n")

	idx, _ := newTestIndexer(t, root)
	first := idx.Reconcile(context.Background(), path, false)
	if first.Err != nil {
		t.Fatal(first.Err)
	}
	firstEntry, _ := idx.journal.Get(path)
	oldIDs := append([]string{}, firstEntry.ChunkIDs...)

	writeFile(t, path, "def f():\n    return 2\n")
	second := idx.Reconcile(context.Background(), path, false)
	if second.Err != nil {
		t.Fatal(second.Err)
	}
	if second.Skipped {
		t.Fatal("edited file should not be skipped")
	}

	results, err := idx.store.Search(make([]float32, vectorstore.Dimension), 10, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		for _, old := range oldIDs {
			if r.ID == old {
				t.Errorf("old chunk id %s still present after edit", old)
			}
		}
	}
}

func TestIndexAllAndSearch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "auth.py"), "def authenticate():\n    return True\n")
	writeFile(t, filepath.Join(root, "src", "db.py"), "def connect():\n    return None\n")

	idx, _ := newTestIndexer(t, root)
	summary, err := idx.IndexAll(context.Background(), false, nil)
	if err != nil {
		t.Fatalf("IndexAll failed: %v", err)
	}
	if summary.Indexed != 2 {
		t.Errorf("Indexed = %d, want 2", summary.Indexed)
	}

	results, err := idx.Search(context.Background(), "authentication", SearchOptions{PathFilter: "src/auth.py"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if filepath.Dir(r.FilePath) != filepath.Join(root, "src") {
			t.Errorf("unexpected result outside path filter: %s", r.FilePath)
		}
	}
}

func TestDeleteFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.py")
	writeFile(t, path, "def f():\n    return 1\n")

	idx, _ := newTestIndexer(t, root)
	if result := idx.Reconcile(context.Background(), path, false); result.Err != nil {
		t.Fatal(result.Err)
	}

	if err := idx.DeleteFile(path); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}

	if _, ok := idx.journal.Get(path); ok {
		t.Error("expected journal entry removed")
	}
	count, err := idx.store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("store Count() = %d, want 0", count)
	}
}
