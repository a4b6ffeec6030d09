package vectorstore

import (
	"os"
	"path/filepath"
	"testing"
)

func vec(seed float32) []float32 {
	v := make([]float32, Dimension)
	v[0] = seed
	return v
}

func TestOpenAndClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("directory was not created")
	}
}

func TestMigration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	var count int
	err = s.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='chunks'").Scan(&count)
	if err != nil {
		t.Fatalf("checking chunks table: %v", err)
	}
	if count != 1 {
		t.Error("chunks table not found")
	}
}

func TestInsertAndSearch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	chunks := []Chunk{
		{ID: "a", FilePath: "main.go", Content: "func main() {}", LineStart: 1, LineEnd: 1, Hash: "h1", Vector: vec(1)},
		{ID: "b", FilePath: "util.go", Content: "func helper() {}", LineStart: 1, LineEnd: 1, Hash: "h2", Vector: vec(2)},
		{ID: "c", FilePath: "pkg/sub/nested.go", Content: "func nested() {}", LineStart: 1, LineEnd: 1, Hash: "h3", Vector: vec(3)},
	}
	for _, c := range chunks {
		if err := s.Insert(c); err != nil {
			t.Fatalf("Insert(%s) failed: %v", c.ID, err)
		}
	}

	results, err := s.Search(vec(1), 10, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("closest match = %q, want %q", results[0].ID, "a")
	}
	if results[0].Score <= 0 || results[0].Score > 1 {
		t.Errorf("score = %f, want in (0, 1]", results[0].Score)
	}
}

func TestSearchWithPathPrefix(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	_ = s.Insert(Chunk{ID: "a", FilePath: "src/main.go", Content: "x", LineStart: 1, LineEnd: 1, Hash: "h1", Vector: vec(1)})
	_ = s.Insert(Chunk{ID: "b", FilePath: "vendor/lib.go", Content: "y", LineStart: 1, LineEnd: 1, Hash: "h2", Vector: vec(1)})

	results, err := s.Search(vec(1), 10, "src/")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected only src/main.go, got %+v", results)
	}
}

func TestSearchWithPathPrefixEscapesWildcards(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	_ = s.Insert(Chunk{ID: "a", FilePath: "src/file_one.go", Content: "x", LineStart: 1, LineEnd: 1, Hash: "h1", Vector: vec(1)})
	_ = s.Insert(Chunk{ID: "b", FilePath: "srcXfile_one.go", Content: "y", LineStart: 1, LineEnd: 1, Hash: "h2", Vector: vec(1)})

	// "src_" should not match "srcX..." once "_" is escaped as a literal.
	results, err := s.Search(vec(1), 10, "src_")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results for literal underscore prefix, got %d", len(results))
	}
}

func TestDeleteByFilePath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	_ = s.Insert(Chunk{ID: "a", FilePath: "main.go", Content: "x", LineStart: 1, LineEnd: 5, Hash: "h1", Vector: vec(1)})
	_ = s.Insert(Chunk{ID: "b", FilePath: "main.go", Content: "y", LineStart: 6, LineEnd: 10, Hash: "h1", Vector: vec(2)})
	_ = s.Insert(Chunk{ID: "c", FilePath: "other.go", Content: "z", LineStart: 1, LineEnd: 1, Hash: "h3", Vector: vec(3)})

	deleted, err := s.DeleteByFilePath("main.go")
	if err != nil {
		t.Fatalf("DeleteByFilePath failed: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("expected 2 deleted ids, got %d", len(deleted))
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestStatsAndClear(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	_ = s.Insert(Chunk{ID: "a", FilePath: "main.go", Content: "x", LineStart: 1, LineEnd: 1, Hash: "h1", Vector: vec(1)})
	_ = s.Insert(Chunk{ID: "b", FilePath: "main.go", Content: "y", LineStart: 2, LineEnd: 2, Hash: "h1", Vector: vec(2)})
	_ = s.Insert(Chunk{ID: "c", FilePath: "other.go", Content: "z", LineStart: 1, LineEnd: 1, Hash: "h3", Vector: vec(3)})

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.ChunkCount != 3 {
		t.Errorf("ChunkCount = %d, want 3", stats.ChunkCount)
	}
	if stats.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", stats.FileCount)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count() after Clear = %d, want 0", count)
	}
}

func TestEscapeLikePrefix(t *testing.T) {
	cases := map[string]string{
		"src/":        "src/",
		"a'b":         "a'b",
		`a\b`:         `a\\b`,
		"100%done":    `100\%done`,
		"under_score": `under\_score`,
	}
	for in, want := range cases {
		got := escapeLikePrefix(in)
		if got != want {
			t.Errorf("escapeLikePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFloat32Serialization(t *testing.T) {
	original := []float32{0.1, 0.2, 0.3, -0.5, 1.0, 0.0}
	b := float32SliceToBytes(original)
	if len(b) != len(original)*4 {
		t.Fatalf("byte length = %d, want %d", len(b), len(original)*4)
	}
}
