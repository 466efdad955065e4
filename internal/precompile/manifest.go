package precompile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const emptyManifest = `{"files":{},"assets":{}}`

// Entry describes one fingerprinted file.
type Entry struct {
	LogicalPath string    `json:"logical_path"`
	DigestPath  string    `json:"-"`
	MTime       time.Time `json:"mtime"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest"`
	Integrity   string    `json:"integrity"`
}

// manifestLocks serializes access per manifest file across Manifest values, since
// concurrent tasks may each hold their own handle.
var manifestLocks sync.Map

func lockFor(path string) *sync.Mutex {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	mu, _ := manifestLocks.LoadOrStore(abs, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Manifest is a handle on the on-disk asset manifest. Every operation reads the
// file and every change is written back atomically, so a manifest removed by
// clean simply starts over empty.
type Manifest struct {
	path string
	mu   *sync.Mutex
}

// OpenManifest returns a handle for path and checks that an existing file is valid.
func OpenManifest(path string) (*Manifest, error) {
	m := &Manifest{path: path, mu: lockFor(path)}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Path returns the manifest location.
func (m *Manifest) Path() string { return m.path }

// Record adds e and points its logical path at it.
func (m *Manifest) Record(e Entry) error {
	return m.update(func(doc string) (string, error) {
		doc, err := sjson.Set(doc, "files."+gjson.Escape(e.DigestPath), e)
		if err != nil {
			return "", fmt.Errorf("manifest: set file %s: %w", e.DigestPath, err)
		}
		doc, err = sjson.Set(doc, "assets."+gjson.Escape(e.LogicalPath), e.DigestPath)
		if err != nil {
			return "", fmt.Errorf("manifest: set asset %s: %w", e.LogicalPath, err)
		}
		return doc, nil
	})
}

// SetRevision stores the source revision the assets were built from.
func (m *Manifest) SetRevision(rev string) error {
	return m.update(func(doc string) (string, error) {
		return sjson.Set(doc, "revision", rev)
	})
}

// Lookup returns the digest path recorded for a logical path.
func (m *Manifest) Lookup(logical string) (string, bool) {
	r := m.get("assets." + gjson.Escape(logical))
	return r.String(), r.Exists()
}

// HasFile reports whether digestPath is a recorded fingerprinted file.
func (m *Manifest) HasFile(digestPath string) bool {
	return m.get("files." + gjson.Escape(digestPath)).Exists()
}

// Assets returns the logical path to digest path mapping.
func (m *Manifest) Assets() map[string]string {
	out := map[string]string{}
	m.get("assets").ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.String()
		return true
	})
	return out
}

// File returns the recorded entry for digestPath.
func (m *Manifest) File(digestPath string) (Entry, bool) {
	r := m.get("files." + gjson.Escape(digestPath))
	if !r.Exists() {
		return Entry{}, false
	}
	mtime, _ := time.Parse(time.RFC3339, r.Get("mtime").String())
	return Entry{
		LogicalPath: r.Get("logical_path").String(),
		DigestPath:  digestPath,
		MTime:       mtime,
		Size:        r.Get("size").Int(),
		Digest:      r.Get("digest").String(),
		Integrity:   r.Get("integrity").String(),
	}, true
}

// Revision returns the recorded source revision.
func (m *Manifest) Revision() string {
	return m.get("revision").String()
}

func (m *Manifest) get(path string) gjson.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, err := m.load()
	if err != nil {
		return gjson.Result{}
	}
	return gjson.Get(doc, path)
}

func (m *Manifest) update(fn func(doc string) (string, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, err := m.load()
	if err != nil {
		return err
	}
	doc, err = fn(doc)
	if err != nil {
		return err
	}
	return m.commit(doc)
}

// load reads the current document. Callers hold m.mu.
func (m *Manifest) load() (string, error) {
	data, err := os.ReadFile(m.path)
	switch {
	case err == nil:
		if !gjson.ValidBytes(data) {
			return "", fmt.Errorf("manifest %s is not valid JSON", m.path)
		}
		return string(data), nil
	case os.IsNotExist(err):
		return emptyManifest, nil
	default:
		return "", fmt.Errorf("read manifest: %w", err)
	}
}

// commit writes doc to a temporary file and renames it over the manifest.
// Callers hold m.mu.
func (m *Manifest) commit(doc string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(gjson.Get(doc, "@pretty").Raw), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}
