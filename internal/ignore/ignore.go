// Package ignore implements the layered ignore-rule evaluation used by the
// file walker: a global literal pattern set plus per-directory .gitignore
// and .wbgrepignore files, applied from the walk root down to each file's
// directory.
package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	gitignore "github.com/sabhiram/go-gitignore"
)

// GlobalPatterns are literal glob patterns ignored everywhere, regardless
// of any .gitignore content. See spec §6.
var GlobalPatterns = []string{
	"*.lock", "*.bin", "*.ipynb", "*.pyc", "*.safetensors", "*.sqlite",
	"*.pt", "*.whl", "*.egg", "*.so", "*.dll", "*.dylib", "*.exe", "*.o",
	"*.a", "*.class", "*.jar", "*.war", "*.min.js", "*.min.css", "*.map",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml",
}

const (
	gitignoreFile  = ".gitignore"
	wbgrepignoreFile = ".wbgrepignore"
)

// Matcher evaluates the layered ignore rules for one walk rooted at Root.
// It caches compiled per-directory matchers so a .gitignore is parsed at
// most once per walk.
type Matcher struct {
	root   string
	global *gitignore.GitIgnore

	mu    sync.Mutex
	cache map[string][]*gitignore.GitIgnore // dir -> compiled ignore files found in that dir
}

// New creates a Matcher rooted at root. extra is appended to
// GlobalPatterns, letting a user's config (spec §6 "ignore.patterns")
// contribute additional always-ignored glob patterns.
func New(root string, extra ...string) *Matcher {
	patterns := make([]string, 0, len(GlobalPatterns)+len(extra))
	patterns = append(patterns, GlobalPatterns...)
	patterns = append(patterns, extra...)
	return &Matcher{
		root:   root,
		global: gitignore.CompileIgnoreLines(patterns...),
		cache:  make(map[string][]*gitignore.GitIgnore),
	}
}

// Ignored reports whether path (absolute, or relative to root) should be
// skipped by the walker.
func (m *Matcher) Ignored(path string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.root, path)
	}
	base := filepath.Base(path)
	if base != "." && base != ".." && strings.HasPrefix(base, ".") {
		return true
	}

	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	if m.global.MatchesPath(rel) {
		return true
	}

	for _, dir := range m.ancestorDirs(path) {
		relToDir, err := filepath.Rel(dir, path)
		if err != nil {
			continue
		}
		relToDir = filepath.ToSlash(relToDir)
		for _, ig := range m.ignoreFilesFor(dir) {
			if ig.MatchesPath(relToDir) {
				return true
			}
		}
	}

	return false
}

// ancestorDirs returns the directories from m.root down to path's parent,
// root first.
func (m *Matcher) ancestorDirs(path string) []string {
	dir := filepath.Dir(path)

	var chain []string
	for {
		chain = append(chain, dir)
		if dir == m.root {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// reverse so root comes first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// ignoreFilesFor returns the compiled ignore files found directly in dir,
// parsing and caching them on first use.
func (m *Matcher) ignoreFilesFor(dir string) []*gitignore.GitIgnore {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.cache[dir]; ok {
		return cached
	}

	var compiled []*gitignore.GitIgnore
	for _, name := range []string{gitignoreFile, wbgrepignoreFile} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		ig, err := gitignore.CompileIgnoreFile(p)
		if err != nil {
			continue
		}
		compiled = append(compiled, ig)
	}

	m.cache[dir] = compiled
	return compiled
}
