package precompile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestDigestAndDigestPath(t *testing.T) {
	d := Digest([]byte("console.log(1)"), 0)
	assert.Len(t, d, 64)
	assert.Equal(t, d, Digest([]byte("console.log(1)"), 0))
	assert.Len(t, Digest([]byte("x"), 8), 8)

	assert.Equal(t, "common-abc.js", DigestPath("common.js", "abc"))
	assert.Equal(t, "icons/logo-abc.png", DigestPath("icons/logo.png", "abc"))
	assert.Equal(t, "LICENSE-abc", DigestPath("LICENSE", "abc"))
}

func TestIntegrity(t *testing.T) {
	// sha256 of the empty string
	assert.Equal(t, "sha256-47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=", Integrity(nil))
}

func TestLogicalPathIsNFC(t *testing.T) {
	assert.Equal(t, "images/caf\u00e9.png", LogicalPath("images/cafe\u0301.png"))
	assert.Equal(t, "a/b.js", LogicalPath("a//b.js"))
}

func TestFingerprintInPlaceRenamesAndRecords(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"common", "top", "other"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name+".js"), []byte("// "+name), 0o644))
	}
	fp, err := NewFingerprinter(root, ".sprockets-manifest.json", 0)
	require.NoError(t, err)

	for _, name := range []string{"common", "top", "other"} {
		e, skipped, err := fp.FingerprintInPlace(filepath.Join(root, name+".js"))
		require.NoError(t, err)
		assert.False(t, skipped)
		assert.Equal(t, name+".js", e.LogicalPath)
		assert.NoFileExists(t, filepath.Join(root, name+".js"))
		assert.FileExists(t, filepath.Join(root, e.DigestPath))
	}

	matches, err := filepath.Glob(filepath.Join(root, "*.js"))
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	// A second pass over the digested files changes nothing.
	for _, m := range matches {
		_, skipped, err := fp.FingerprintInPlace(m)
		require.NoError(t, err)
		assert.True(t, skipped)
	}
	after, err := filepath.Glob(filepath.Join(root, "*.js"))
	require.NoError(t, err)
	assert.ElementsMatch(t, matches, after)

	data, err := os.ReadFile(filepath.Join(root, ".sprockets-manifest.json"))
	require.NoError(t, err)
	assets := gjson.GetBytes(data, "assets").Map()
	assert.Len(t, assets, 3)
	digestPath := assets["common.js"].String()
	file := gjson.GetBytes(data, "files."+gjson.Escape(digestPath))
	assert.Equal(t, "common.js", file.Get("logical_path").String())
	assert.Equal(t, int64(len("// common")), file.Get("size").Int())
	assert.Equal(t, Integrity([]byte("// common")), file.Get("integrity").String())
}

func TestFingerprintInPlaceRejectsOutsideRoot(t *testing.T) {
	fp, err := NewFingerprinter(t.TempDir(), "m.json", 0)
	require.NoError(t, err)
	_, _, err = fp.FingerprintInPlace(filepath.Join(t.TempDir(), "x.js"))
	assert.Error(t, err)
}

func TestWriteStoresDigestedCopy(t *testing.T) {
	root := t.TempDir()
	fp, err := NewFingerprinter(root, "manifest.json", 12)
	require.NoError(t, err)

	e, err := fp.Write("icons/logo.png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "icons/logo-"+Digest([]byte("png-bytes"), 12)+".png", e.DigestPath)
	assert.FileExists(t, filepath.Join(root, "icons", filepath.Base(e.DigestPath)))

	got, ok := fp.Manifest.Lookup("icons/logo.png")
	require.True(t, ok)
	assert.Equal(t, e.DigestPath, got)

	rec, ok := fp.Manifest.File(e.DigestPath)
	require.True(t, ok)
	assert.Equal(t, e.Size, rec.Size)
	assert.True(t, e.MTime.Equal(rec.MTime))
}

func TestManifestConcurrentRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := OpenManifest(path)
			if !assert.NoError(t, err) {
				return
			}
			logical := fmt.Sprintf("file%d.v1.js", i)
			assert.NoError(t, m.Record(Entry{LogicalPath: logical, DigestPath: DigestPath(logical, "d"), Digest: "d"}))
		}()
	}
	wg.Wait()

	m, err := OpenManifest(path)
	require.NoError(t, err)
	assets := m.Assets()
	assert.Len(t, assets, 20)
	assert.Equal(t, "file3.v1-d.js", assets["file3.v1.js"])
	assert.True(t, m.HasFile("file3.v1-d.js"))
}

func TestManifestStartsOverWhenRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	m, err := OpenManifest(path)
	require.NoError(t, err)
	require.NoError(t, m.Record(Entry{LogicalPath: "a.js", DigestPath: "a-1.js"}))
	require.NoError(t, os.Remove(path))

	_, ok := m.Lookup("a.js")
	assert.False(t, ok)
}

func TestOpenManifestRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := OpenManifest(path)
	assert.Error(t, err)
}

func TestRevision(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, Revision(dir))

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README")
	require.NoError(t, err)
	hash, err := wt.Commit("init", &git.CommitOptions{Author: &object.Signature{Name: "t", Email: "t@example.com"}})
	require.NoError(t, err)

	sub := filepath.Join(dir, "app", "assets")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	assert.Equal(t, hash.String(), Revision(sub))
}

func TestResolverURL(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "images", "logo.png"), []byte("logo"), 0o644))

	dev := &Resolver{Prefix: "/assets", Roots: []string{filepath.Join(root, "images")}}
	u, err := dev.URL("logo.png?v=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "/assets/logo.png?v=1#frag", u)

	prod := &Resolver{Prefix: "/assets", Roots: []string{filepath.Join(root, "images")}, Fingerprint: true}
	u, err = prod.URL("logo.png")
	require.NoError(t, err)
	assert.Equal(t, "/assets/logo-"+Digest([]byte("logo"), 0)+".png", u)

	_, err = prod.URL("missing.png")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}
