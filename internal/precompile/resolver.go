package precompile

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrAssetNotFound is returned when a fingerprinted URL is requested for a
// logical path that exists in none of the search roots.
var ErrAssetNotFound = errors.New("asset not found")

// Resolver maps logical asset paths to public URLs.
type Resolver struct {
	Prefix string
	// Roots are searched in order for the source file of a logical path.
	Roots []string
	// Fingerprint makes URLs point at the digested file name.
	Fingerprint  bool
	DigestLength int
}

// URL returns the public URL of logical. Query strings and fragments are kept.
func (r *Resolver) URL(logical string) (string, error) {
	clean, suffix := splitSuffix(logical)
	clean = LogicalPath(strings.TrimPrefix(clean, "/"))

	if r.Fingerprint {
		content, err := r.read(clean)
		if err != nil {
			return "", err
		}
		clean = DigestPath(clean, Digest(content, r.DigestLength))
	}
	return path.Join(r.prefix(), clean) + suffix, nil
}

func (r *Resolver) prefix() string {
	if r.Prefix == "" {
		return "/assets"
	}
	return r.Prefix
}

func (r *Resolver) read(logical string) ([]byte, error) {
	for _, root := range r.Roots {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(logical)))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, logical)
}

func splitSuffix(p string) (string, string) {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i], p[i:]
	}
	return p, ""
}
