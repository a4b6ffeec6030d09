package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wb200/wbgrep/internal/chunker"
	"github.com/wb200/wbgrep/internal/config"
	"github.com/wb200/wbgrep/internal/embedder"
	"github.com/wb200/wbgrep/internal/indexer"
	"github.com/wb200/wbgrep/internal/journal"
	"github.com/wb200/wbgrep/internal/logging"
	"github.com/wb200/wbgrep/internal/vectorstore"
)

var (
	rootDir string
	jsonOut bool
	verbose bool
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "wbgrep",
	Short: "Local semantic code search over a vector index",
	Long: `wbgrep indexes a source tree into local vector embeddings and lets
you search it by meaning rather than by keyword. It runs entirely
against a local embedding backend (Ollama by default); nothing leaves
the machine.

Run 'wbgrep index' once to build the index, 'wbgrep watch' to keep it
current, and 'wbgrep search <query>' to look things up.`,
}

// Execute runs the command tree and returns any error from the selected
// subcommand.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cwd, _ := os.Getwd()
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", cwd, "repository root to operate on")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
}

// runtime bundles the objects every subcommand needs: the resolved
// config, a logger, and the indexer wired to its store and journal.
type runtime struct {
	root   string
	cfg    *config.Config
	logger *zap.Logger
	idx    *indexer.Indexer
	store  *vectorstore.Store
	close  func()
}

func loadRuntime() (*runtime, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:      level,
		FilePath:   logFile,
		MaxSizeMB:  20,
		MaxBackups: 3,
		Console:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	storePath := filepath.Join(config.StoreDir(root), "index.db")
	store, err := vectorstore.Open(storePath)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	j := journal.New(config.JournalPath(root))
	if err := j.Load(); err != nil {
		store.Close()
		return nil, fmt.Errorf("loading journal: %w", err)
	}

	emb := newEmbedderFromConfig(cfg, logger)

	chunkerCfg := chunker.DefaultConfig()
	ch := chunker.New(chunkerCfg)

	idxCfg := indexer.Config{
		MaxFileSize:    cfg.Indexing.MaxFileSize,
		BatchSize:      cfg.Indexing.BatchSize,
		MaxResults:     cfg.Search.MaxResults,
		Logger:         logger,
		IgnorePatterns: cfg.Ignore.Patterns,
	}
	idx := indexer.New(root, ch, emb, store, j, idxCfg)

	return &runtime{
		root:   root,
		cfg:    cfg,
		logger: logger,
		idx:    idx,
		store:  store,
		close: func() {
			_ = j.Save()
			store.Close()
			_ = logger.Sync()
		},
	}, nil
}

func newEmbedderFromConfig(cfg *config.Config, logger *zap.Logger) *embedder.Client {
	embCfg := embedder.DefaultConfig()
	embCfg.BaseURL = cfg.Ollama.BaseURL
	embCfg.Model = cfg.Ollama.Model
	embCfg.Retries = cfg.Ollama.Retries
	embCfg.Concurrency = cfg.Indexing.Concurrency
	if cfg.Ollama.Timeout > 0 {
		embCfg.Timeout = time.Duration(cfg.Ollama.Timeout) * time.Millisecond
	}
	embCfg.Logger = logger
	return embedder.New(embCfg)
}
