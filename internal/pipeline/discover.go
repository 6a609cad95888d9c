package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern selects Solidity files in the top level of a directory.
const DefaultPattern = "*.sol"

// Discover returns the files under dir matching pattern, sorted by path.
// Patterns use doublestar syntax, so "**/*.sol" recurses.
func Discover(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid contract pattern %q", pattern)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("contracts dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("contracts dir: %s is not a directory", dir)
	}

	var matches []string
	err = doublestar.GlobWalk(os.DirFS(dir), pattern, func(path string, d fs.DirEntry) error {
		if !d.IsDir() {
			matches = append(matches, filepath.Join(dir, filepath.FromSlash(path)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("glob: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}
