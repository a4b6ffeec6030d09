// Package config loads wbgrep's configuration file, applying defaults
// and environment-variable overrides, per spec §6.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// configCandidates are tried in order against the repository root; the
// first that exists wins.
var configCandidates = []string{".wbgreprc", ".wbgreprc.json", "wbgrep.config.json"}

// OllamaConfig configures the embedding backend.
type OllamaConfig struct {
	BaseURL string `mapstructure:"baseurl"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
	Retries int    `mapstructure:"retries"`
}

// IndexingConfig configures the indexer.
type IndexingConfig struct {
	BatchSize   int   `mapstructure:"batchsize"`
	MaxFileSize int64 `mapstructure:"maxfilesize"`
	Concurrency int   `mapstructure:"concurrency"`
}

// SearchConfig configures the query path's defaults.
type SearchConfig struct {
	MaxResults  int  `mapstructure:"maxresults"`
	ShowContent bool `mapstructure:"showcontent"`
}

// IgnoreConfig holds extra literal ignore patterns layered on top of
// spec §6's built-in global set.
type IgnoreConfig struct {
	Patterns []string `mapstructure:"patterns"`
}

// Config is the top-level, fully-defaulted configuration document.
type Config struct {
	Ollama   OllamaConfig   `mapstructure:"ollama"`
	Indexing IndexingConfig `mapstructure:"indexing"`
	Search   SearchConfig   `mapstructure:"search"`
	Ignore   IgnoreConfig   `mapstructure:"ignore"`
}

// DefaultConfig returns spec §6's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen3-embedding:0.6b",
			Timeout: 30000,
			Retries: 3,
		},
		Indexing: IndexingConfig{
			BatchSize:   10,
			MaxFileSize: 1024 * 1024,
			Concurrency: 8,
		},
		Search: SearchConfig{
			MaxResults:  10,
			ShowContent: false,
		},
	}
}

// Load reads the first matching config file under root (spec §6:
// `.wbgreprc`, `.wbgreprc.json`, `wbgrep.config.json`, first match
// wins), applying defaults for anything unset and letting `WBGREP_`
// prefixed environment variables override both.
func Load(root string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	applyDefaults(v, DefaultConfig())

	for _, name := range configCandidates {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		break
	}

	v.SetEnvPrefix("WBGREP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("ollama.baseurl", d.Ollama.BaseURL)
	v.SetDefault("ollama.model", d.Ollama.Model)
	v.SetDefault("ollama.timeout", d.Ollama.Timeout)
	v.SetDefault("ollama.retries", d.Ollama.Retries)

	v.SetDefault("indexing.batchsize", d.Indexing.BatchSize)
	v.SetDefault("indexing.maxfilesize", d.Indexing.MaxFileSize)
	v.SetDefault("indexing.concurrency", d.Indexing.Concurrency)

	v.SetDefault("search.maxresults", d.Search.MaxResults)
	v.SetDefault("search.showcontent", d.Search.ShowContent)

	v.SetDefault("ignore.patterns", []string{})
}

// StoreDir returns the vector-store directory for a repository root
// (spec §6: ".wb-grep/vectors").
func StoreDir(root string) string {
	return filepath.Join(root, ".wb-grep", "vectors")
}

// JournalPath returns the state-journal path for a repository root
// (spec §6: ".wb-grep/state.json").
func JournalPath(root string) string {
	return filepath.Join(root, ".wb-grep", "state.json")
}
