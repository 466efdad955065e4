package assets

import (
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Match is one file found by a glob.
type Match struct {
	// Path is usable with os functions.
	Path string
	// Rel is relative to the static base of the pattern, slash-separated.
	Rel string
}

// Glob expands patterns relative to root. Each pattern is split into its static
// base directory and the remaining pattern, and Rel is computed against that base,
// matching how gulp.src computes relative paths. Missing base directories yield no
// matches.
func Glob(root string, patterns []string) ([]Match, error) {
	seen := map[string]bool{}
	var out []Match
	for _, p := range patterns {
		full := filepath.ToSlash(p)
		if !path.IsAbs(full) && !filepath.IsAbs(p) {
			full = path.Join(filepath.ToSlash(root), full)
		}
		base, pattern := doublestar.SplitPattern(full)
		if _, err := os.Stat(base); os.IsNotExist(err) {
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(base), pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			abs := filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m))
			if seen[abs] {
				continue
			}
			seen[abs] = true
			out = append(out, Match{Path: abs, Rel: m})
		}
	}
	slices.SortFunc(out, func(a, b Match) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}
