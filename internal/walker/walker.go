// Package walker implements C1 of the indexing engine: a lazy traversal of
// a repository root that yields candidate files honoring layered ignore
// rules and the code-extension allowlist.
package walker

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wb200/wbgrep/internal/ignore"
)

// CodeExtensions is the allowlist from spec §6.
var CodeExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true,
	".cjs": true, ".py": true, ".java": true, ".go": true, ".rs": true,
	".c": true, ".cpp": true, ".h": true, ".hpp": true, ".cs": true,
	".rb": true, ".php": true, ".swift": true, ".kt": true, ".scala": true,
	".r": true, ".m": true, ".md": true, ".mdx": true, ".txt": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".xml": true,
	".html": true, ".css": true, ".scss": true, ".sass": true, ".less": true,
	".vue": true, ".svelte": true, ".sql": true, ".sh": true, ".bash": true,
	".zsh": true, ".fish": true, ".ps1": true, ".bat": true, ".cmd": true,
	".dockerfile": true, ".makefile": true, ".cmake": true, ".gradle": true,
	".tf": true, ".hcl": true, ".proto": true, ".graphql": true, ".prisma": true,
}

// SpecialFiles are basenames (case-insensitive) emitted regardless of
// extension.
var SpecialFiles = map[string]bool{
	"dockerfile": true, "makefile": true, "cmakelists.txt": true,
	"gemfile": true, "rakefile": true,
}

// Emittable reports whether a regular file should be yielded by the walk,
// independent of ignore rules.
func Emittable(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if SpecialFiles[base] {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return CodeExtensions[ext]
}

// Walk traverses root depth-first and invokes fn for every emitted file.
// Directories that cannot be read are skipped silently. fn receives
// absolute paths. Traversal order within a directory is lexical, which
// makes a full-tree index's file order deterministic. extraIgnore adds
// user-configured patterns (spec §6 "ignore.patterns") on top of the
// built-in global set.
func Walk(root string, extraIgnore []string, fn func(path string) error) error {
	m := ignore.New(root, extraIgnore...)
	return walkDir(root, m, fn)
}

func walkDir(dir string, m *ignore.Matcher, fn func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// Permission errors and the like are non-fatal for the walk.
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if name != "." && name != ".." && strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(dir, name)
		if m.Ignored(path) {
			continue
		}

		if entry.IsDir() {
			if err := walkDir(path, m, fn); err != nil {
				return err
			}
			continue
		}

		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		if !Emittable(path) {
			continue
		}

		if err := fn(path); err != nil {
			return err
		}
	}

	return nil
}

// Collect runs Walk and returns the emitted paths as a slice, in emission
// order.
func Collect(root string, extraIgnore []string) ([]string, error) {
	var out []string
	err := Walk(root, extraIgnore, func(path string) error {
		out = append(out, path)
		return nil
	})
	return out, err
}
