// Package fs provides file system adapters for walking and hashing build descriptions.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
)

// DefaultIgnores are file and directory names that never contribute to a description digest.
var DefaultIgnores = []string{".git", ".jj", ".DS_Store", "*.swp", "*~"}

// Walker provides file walking functionality.
type Walker struct {
	ignores []string
}

// NewWalker creates a new Walker that skips DefaultIgnores and the given patterns.
func NewWalker(ignores ...string) *Walker {
	return &Walker{ignores: append(append([]string(nil), DefaultIgnores...), ignores...)}
}

// WalkFiles yields every regular file below root together with its path relative to root.
// Walking stops at the first error, which is yielded with an empty path.
func (w *Walker) WalkFiles(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if path != root && w.ignored(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if !yield(filepath.ToSlash(rel), nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			yield("", err)
		}
	}
}

func (w *Walker) ignored(name string) bool {
	for _, pattern := range w.ignores {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
