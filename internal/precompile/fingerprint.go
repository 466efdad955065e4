package precompile

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"

	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
)

// Digest returns the hex blake3 digest of content, truncated to length when
// length is positive.
func Digest(content []byte, length int) string {
	sum := blake3.Sum256(content)
	d := hex.EncodeToString(sum[:])
	if length > 0 && length < len(d) {
		d = d[:length]
	}
	return d
}

// Integrity returns the Subresource Integrity value of content.
func Integrity(content []byte) string {
	sum := sha256.Sum256(content)
	return "sha256-" + base64.StdEncoding.EncodeToString(sum[:])
}

// DigestPath inserts digest before the extension of a slash-separated logical path.
func DigestPath(logical, digest string) string {
	ext := path.Ext(logical)
	return strings.TrimSuffix(logical, ext) + "-" + digest + ext
}

// LogicalPath normalizes a path relative to the output directory.
func LogicalPath(rel string) string {
	return norm.NFC.String(filepath.ToSlash(filepath.Clean(rel)))
}

// Fingerprinter writes digested files into an output directory and records them.
type Fingerprinter struct {
	Root         string
	Manifest     *Manifest
	DigestLength int
}

// NewFingerprinter opens (or starts) the manifest named manifestName inside root.
func NewFingerprinter(root, manifestName string, digestLength int) (*Fingerprinter, error) {
	m, err := OpenManifest(filepath.Join(root, manifestName))
	if err != nil {
		return nil, err
	}
	return &Fingerprinter{Root: root, Manifest: m, DigestLength: digestLength}, nil
}

// Write stores content under the digested form of logical and records it.
func (f *Fingerprinter) Write(logical string, content []byte) (Entry, error) {
	logical = LogicalPath(logical)
	e := f.entry(logical, content, time.Now())
	dst := filepath.Join(f.Root, filepath.FromSlash(e.DigestPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Entry{}, err
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return Entry{}, err
	}
	if err := f.Manifest.Record(e); err != nil {
		return Entry{}, err
	}
	slog.Debug("Precompiled asset", logfields.Path(e.DigestPath), slog.String("logical_path", logical))
	return e, nil
}

// FingerprintInPlace renames the file at path (inside Root) to its digested name.
// Files that are already recorded, either as a digest path or with the same
// digest for their logical path, are left alone and reported with skipped=true.
func (f *Fingerprinter) FingerprintInPlace(p string) (e Entry, skipped bool, err error) {
	rel, err := filepath.Rel(f.Root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Entry{}, false, fmt.Errorf("%s is outside %s", p, f.Root)
	}
	logical := LogicalPath(rel)
	if f.Manifest.HasFile(logical) {
		return Entry{}, true, nil
	}

	content, err := os.ReadFile(p)
	if err != nil {
		return Entry{}, false, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return Entry{}, false, err
	}
	e = f.entry(logical, content, fi.ModTime())
	if existing, ok := f.Manifest.Lookup(logical); ok && existing == e.DigestPath {
		if err := os.Remove(p); err != nil {
			return Entry{}, false, err
		}
		return e, true, nil
	}

	dst := filepath.Join(f.Root, filepath.FromSlash(e.DigestPath))
	if err := os.Rename(p, dst); err != nil {
		return Entry{}, false, err
	}
	if err := f.Manifest.Record(e); err != nil {
		return Entry{}, false, err
	}
	slog.Debug("Fingerprinted asset", logfields.Path(e.DigestPath), slog.String("logical_path", logical))
	return e, false, nil
}

func (f *Fingerprinter) entry(logical string, content []byte, mtime time.Time) Entry {
	d := Digest(content, f.DigestLength)
	return Entry{
		LogicalPath: logical,
		DigestPath:  DigestPath(logical, d),
		MTime:       mtime.UTC().Truncate(time.Second),
		Size:        int64(len(content)),
		Digest:      d,
		Integrity:   Integrity(content),
	}
}
