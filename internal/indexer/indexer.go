// Package indexer implements C6: the orchestrator that composes the
// walker, chunker, embedding client, vector store, and state journal into
// the per-file reconcile algorithm, whole-tree indexing, deletion, and
// query paths of spec §4.6.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wb200/wbgrep/internal/chunker"
	"github.com/wb200/wbgrep/internal/journal"
	"github.com/wb200/wbgrep/internal/vectorstore"
	"github.com/wb200/wbgrep/internal/walker"
	"github.com/wb200/wbgrep/internal/wberr"
)

// binarySampleSize is the number of leading code units inspected by the
// binary guard (spec §4.6.1 step 3).
const binarySampleSize = 8000

// Config holds the indexer's tunables.
type Config struct {
	// MaxFileSize is the largest file, in bytes, eligible for indexing.
	MaxFileSize int64

	// BatchSize is how many files are reconciled between journal saves
	// during a full-tree pass.
	BatchSize int

	// MaxResults is the default search result cap when the caller does
	// not specify one.
	MaxResults int

	// Logger receives reconcile failures and pass summaries. A nil
	// Logger is replaced with a no-op logger.
	Logger *zap.Logger

	// IgnorePatterns are extra user-configured glob patterns (spec §6
	// "ignore.patterns") applied on top of the built-in global set
	// during a full-tree walk.
	IgnorePatterns []string
}

// DefaultConfig returns spec §4.6/§6's defaults.
func DefaultConfig() Config {
	return Config{
		MaxFileSize: 1024 * 1024,
		BatchSize:   10,
		MaxResults:  10,
	}
}

// Result is the typed outcome of a single-file reconcile (spec §9: a
// value, not an exception).
type Result struct {
	Chunks  int
	Skipped bool
	Err     error
}

// Embedder is the subset of embedder.Client the indexer depends on.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Indexer composes C1-C5 to implement C6.
type Indexer struct {
	root     string
	cfg      Config
	chunker  *chunker.Chunker
	embedder Embedder
	store    *vectorstore.Store
	journal  *journal.Journal
	logger   *zap.Logger
}

// New creates an Indexer rooted at root.
func New(root string, chunker *chunker.Chunker, emb Embedder, store *vectorstore.Store, j *journal.Journal, cfg Config) *Indexer {
	d := DefaultConfig()
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = d.MaxFileSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = d.MaxResults
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		root:     root,
		cfg:      cfg,
		chunker:  chunker,
		embedder: emb,
		store:    store,
		journal:  j,
		logger:   logger,
	}
}

// Reconcile brings the stored representation of path into agreement with
// its current on-disk content, per spec §4.6.1. The journal is mutated
// only on success; a failure leaves it untouched so the next reconcile
// retries.
func (idx *Indexer) Reconcile(ctx context.Context, path string, force bool) Result {
	result := idx.reconcile(ctx, path, force)
	if result.Err != nil {
		idx.logger.Error("reconcile failed", zap.String("path", path), zap.Error(result.Err))
	}
	return result
}

func (idx *Indexer) reconcile(ctx context.Context, path string, force bool) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Skipped: true, Err: &wberr.FileIOError{Path: path, Err: err}}
	}
	if info.Size() > idx.cfg.MaxFileSize || info.Size() == 0 {
		return Result{Skipped: true}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Result{Skipped: true, Err: &wberr.FileIOError{Path: path, Err: err}}
	}

	if looksBinary(content) {
		return Result{Skipped: true}
	}

	hash := hashContent(content)

	entry, hadEntry := idx.journal.Get(path)
	if !force && hadEntry && entry.Hash == hash {
		return Result{Skipped: true}
	}

	if hadEntry && len(entry.ChunkIDs) > 0 {
		if err := idx.store.DeleteByIDs(entry.ChunkIDs); err != nil {
			return Result{Skipped: true, Err: fmt.Errorf("deleting stale chunks for %s: %w", path, err)}
		}
	}

	chunks := idx.chunker.Chunk(string(content), path)
	if len(chunks) == 0 {
		return Result{Skipped: true}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Result{Skipped: true, Err: fmt.Errorf("embedding %s: %w", path, err)}
	}

	now := time.Now()
	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		id := uuid.New().String()
		chunkIDs[i] = id

		if err := idx.store.Insert(vectorstore.Chunk{
			ID:        id,
			FilePath:  path,
			Content:   c.Content,
			LineStart: c.LineStart,
			LineEnd:   c.LineEnd,
			Hash:      hash,
			Vector:    vectors[i],
			Timestamp: now,
		}); err != nil {
			return Result{Skipped: true, Err: fmt.Errorf("storing chunk for %s: %w", path, err)}
		}
	}

	idx.journal.Set(path, journal.FileEntry{
		Hash:         hash,
		LastModified: now,
		ChunkIDs:     chunkIDs,
		ChunkCount:   len(chunkIDs),
	})

	return Result{Chunks: len(chunkIDs)}
}

// Summary accumulates the outcome of a full-tree pass.
type Summary struct {
	Indexed     int
	Skipped     int
	Failed      int
	TotalChunks int
}

// ProgressFunc is invoked before each file's reconcile during IndexAll.
type ProgressFunc func(current, total int, path string)

// IndexAll performs a full-tree index per spec §4.6.2. If clear is true,
// the vector store and journal are truncated first.
func (idx *Indexer) IndexAll(ctx context.Context, clear bool, progress ProgressFunc) (Summary, error) {
	if clear {
		if err := idx.store.Clear(); err != nil {
			return Summary{}, fmt.Errorf("clearing store: %w", err)
		}
		idx.journal.Clear()
	}

	files, err := walker.Collect(idx.root, idx.cfg.IgnorePatterns)
	if err != nil {
		return Summary{}, fmt.Errorf("walking %s: %w", idx.root, err)
	}

	var sum Summary
	for i, path := range files {
		select {
		case <-ctx.Done():
			_ = idx.journal.Save()
			return sum, ctx.Err()
		default:
		}

		if progress != nil {
			progress(i+1, len(files), path)
		}

		result := idx.Reconcile(ctx, path, false)
		switch {
		case result.Err != nil:
			sum.Failed++
		case result.Skipped:
			sum.Skipped++
		default:
			sum.Indexed++
			sum.TotalChunks += result.Chunks
		}

		if (i+1)%idx.cfg.BatchSize == 0 {
			if err := idx.journal.Save(); err != nil {
				return sum, fmt.Errorf("saving journal: %w", err)
			}
		}
	}

	if err := idx.journal.Save(); err != nil {
		return sum, fmt.Errorf("saving journal: %w", err)
	}

	idx.logger.Info("index pass complete",
		zap.Int("indexed", sum.Indexed), zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed), zap.Int("chunks", sum.TotalChunks))

	return sum, nil
}

// DeleteFile removes a file's chunks from the store and its entry from
// the journal, per spec §4.6.3.
func (idx *Indexer) DeleteFile(path string) error {
	entry, ok := idx.journal.Get(path)
	if !ok {
		return nil
	}

	if len(entry.ChunkIDs) > 0 {
		if err := idx.store.DeleteByIDs(entry.ChunkIDs); err != nil {
			return fmt.Errorf("deleting chunks for %s: %w", path, err)
		}
	}

	idx.journal.Remove(path)
	return idx.journal.Save()
}

// JournalSave flushes the state journal to disk if dirty. Exposed for
// callers (such as the watcher and shutdown handler) that need to force
// a save outside of Reconcile/IndexAll/DeleteFile.
func (idx *Indexer) JournalSave() error {
	return idx.journal.Save()
}

// JournalEntry returns the journal's current entry for path, if any.
func (idx *Indexer) JournalEntry(path string) (journal.FileEntry, bool) {
	return idx.journal.Get(path)
}

// SearchOptions configures a query-path search.
type SearchOptions struct {
	Limit      int
	PathFilter string
}

// Search embeds queryText and returns ranked matches from the store, per
// spec §4.6.4. A relative PathFilter is resolved against the indexer's
// root.
func (idx *Indexer) Search(ctx context.Context, queryText string, opts SearchOptions) ([]vectorstore.Result, error) {
	vector, err := idx.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = idx.cfg.MaxResults
	}

	prefix := opts.PathFilter
	if prefix != "" && !filepath.IsAbs(prefix) {
		prefix = filepath.Join(idx.root, prefix)
	}

	return idx.store.Search(vector, limit, prefix)
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// looksBinary applies spec §4.6.1's binary guard: more than one NUL code
// point in the first binarySampleSize runes marks the file binary.
func looksBinary(content []byte) bool {
	sample := content
	text := string(sample)

	nulCount := 0
	seen := 0
	for _, r := range text {
		if seen >= binarySampleSize {
			break
		}
		seen++
		if r == 0 {
			nulCount++
			if nulCount > 1 {
				return true
			}
		}
	}
	return false
}
