// Package vectorstore implements C4: on-disk storage and approximate
// nearest-neighbor search over chunk embeddings, backed by SQLite and the
// sqlite-vec virtual table extension.
package vectorstore

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wb200/wbgrep/internal/wberr"
)

// Dimension is the embedding width stored in the vec0 virtual table. It
// must match the embedder's output width (spec §6).
const Dimension = 1024

func init() {
	sqlite_vec.Auto()
}

// Chunk is one stored, embedded region of a file.
type Chunk struct {
	ID        string
	FilePath  string
	Content   string
	LineStart int
	LineEnd   int
	Hash      string
	Vector    []float32
	Timestamp time.Time
}

// Result is a single scored search hit.
type Result struct {
	Chunk
	Score float64
}

// Stats summarizes the store's contents.
type Stats struct {
	FileCount  int64
	ChunkCount int64
}

// Store wraps a SQLite database holding chunk rows and their vectors.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens or creates the vector store at dbPath, creating parent
// directories and running migrations as needed.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{conn: conn, path: dbPath}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			content TEXT NOT NULL,
			line_start INTEGER NOT NULL,
			line_end INTEGER NOT NULL,
			hash TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
		CREATE INDEX IF NOT EXISTS idx_chunks_hash ON chunks(hash);

		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vectors USING vec0(
			id TEXT PRIMARY KEY,
			vector float[%d]
		);
	`, Dimension))
	if err != nil {
		return fmt.Errorf("migration: %w", err)
	}
	return nil
}

// Insert stores a chunk and its vector. If a chunk with the same ID
// already exists it is replaced.
func (s *Store) Insert(c Chunk) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return &wberr.StoreIOError{Op: "insert", Err: err}
	}
	defer tx.Rollback()

	ts := c.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO chunks (id, file_path, content, line_start, line_end, hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_path = excluded.file_path,
			content = excluded.content,
			line_start = excluded.line_start,
			line_end = excluded.line_end,
			hash = excluded.hash,
			created_at = excluded.created_at
	`, c.ID, c.FilePath, c.Content, c.LineStart, c.LineEnd, c.Hash, ts)
	if err != nil {
		return &wberr.StoreIOError{Op: "insert chunk", Err: err}
	}

	if _, err := tx.Exec(`DELETE FROM chunk_vectors WHERE id = ?`, c.ID); err != nil {
		return &wberr.StoreIOError{Op: "clear old vector", Err: err}
	}
	if _, err := tx.Exec(`INSERT INTO chunk_vectors (id, vector) VALUES (?, ?)`, c.ID, float32SliceToBytes(c.Vector)); err != nil {
		return &wberr.StoreIOError{Op: "insert vector", Err: err}
	}

	return tx.Commit()
}

// DeleteByIDs removes the chunks with the given IDs, along with their
// vectors.
func (s *Store) DeleteByIDs(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return &wberr.StoreIOError{Op: "delete", Err: err}
	}
	defer tx.Rollback()

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	in := strings.Join(placeholders, ",")

	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM chunk_vectors WHERE id IN (%s)`, in), args...); err != nil {
		return &wberr.StoreIOError{Op: "delete vectors", Err: err}
	}
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM chunks WHERE id IN (%s)`, in), args...); err != nil {
		return &wberr.StoreIOError{Op: "delete chunks", Err: err}
	}

	return tx.Commit()
}

// DeleteByFilePath removes every chunk belonging to filePath and returns
// the deleted chunk IDs.
func (s *Store) DeleteByFilePath(filePath string) ([]string, error) {
	rows, err := s.conn.Query(`SELECT id FROM chunks WHERE file_path = ?`, filePath)
	if err != nil {
		return nil, &wberr.StoreIOError{Op: "list chunks for file", Err: err}
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, &wberr.StoreIOError{Op: "scan chunk id", Err: err}
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &wberr.StoreIOError{Op: "list chunks for file", Err: err}
	}

	if err := s.DeleteByIDs(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ChunkIDsForFile returns the stored chunk IDs for filePath, in no
// particular order.
func (s *Store) ChunkIDsForFile(filePath string) ([]string, error) {
	rows, err := s.conn.Query(`SELECT id FROM chunks WHERE file_path = ?`, filePath)
	if err != nil {
		return nil, &wberr.StoreIOError{Op: "list chunks for file", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &wberr.StoreIOError{Op: "scan chunk id", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Search performs an approximate k-nearest-neighbor search against the
// stored vectors. If pathPrefix is non-empty, results are restricted to
// chunks whose file path starts with it. Scores are in (0, 1], computed
// as 1/(1+distance) per spec §4.4.
func (s *Store) Search(query []float32, limit int, pathPrefix string) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}

	args := []interface{}{float32SliceToBytes(query), limit}
	q := `
		SELECT c.id, c.file_path, c.content, c.line_start, c.line_end, c.hash, c.created_at, v.distance
		FROM chunk_vectors v
		JOIN chunks c ON c.id = v.id
		WHERE v.vector MATCH ? AND k = ?
	`
	if pathPrefix != "" {
		q += " AND c.file_path LIKE ? ESCAPE '\\'"
		args = append(args, escapeLikePrefix(pathPrefix)+"%")
	}
	q += " ORDER BY v.distance"

	rows, err := s.conn.Query(q, args...)
	if err != nil {
		return nil, &wberr.StoreIOError{Op: "search", Err: err}
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var distance float64
		if err := rows.Scan(&r.ID, &r.FilePath, &r.Content, &r.LineStart, &r.LineEnd, &r.Hash, &r.Timestamp, &distance); err != nil {
			return nil, &wberr.StoreIOError{Op: "scan search result", Err: err}
		}
		r.Score = 1.0 / (1.0 + distance)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the total number of stored chunks.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Stats returns summary counts for the store.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{}
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&st.ChunkCount); err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	if err := s.conn.QueryRow(`SELECT COUNT(DISTINCT file_path) FROM chunks`).Scan(&st.FileCount); err != nil {
		return nil, fmt.Errorf("counting files: %w", err)
	}
	return st, nil
}

// Clear removes every chunk and vector from the store.
func (s *Store) Clear() error {
	tx, err := s.conn.Begin()
	if err != nil {
		return &wberr.StoreIOError{Op: "clear", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunk_vectors`); err != nil {
		return &wberr.StoreIOError{Op: "clear vectors", Err: err}
	}
	if _, err := tx.Exec(`DELETE FROM chunks`); err != nil {
		return &wberr.StoreIOError{Op: "clear chunks", Err: err}
	}
	return tx.Commit()
}

// escapeLikePrefix prepares a path prefix for safe use as a bound LIKE
// pattern argument: strip ASCII control bytes (values below 32, and DEL
// at 127), then backslash-escape the LIKE wildcards \, %, and _ per the
// ESCAPE '\' clause declared alongside it. Since the value is bound as a
// parameter rather than embedded as a SQL literal, quote characters need
// no escaping here.
func escapeLikePrefix(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix))

	for _, r := range prefix {
		switch {
		case r < 32 || r == 127:
			continue
		case r == '\\':
			b.WriteString(`\\`)
		case r == '%':
			b.WriteString(`\%`)
		case r == '_':
			b.WriteString(`\_`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func float32SliceToBytes(floats []float32) []byte {
	out := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
