package content

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kbsync/internal/model"
)

// countLinks swaps linkFunc for a counting wrapper for the duration of the test
func countLinks(t *testing.T) *atomic.Int32 {
	t.Helper()
	var n atomic.Int32
	orig := linkFunc
	linkFunc = func(oldname, newname string) error {
		n.Add(1)
		return orig(oldname, newname)
	}
	t.Cleanup(func() { linkFunc = orig })
	return &n
}

func blobFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDigest_LineEndingsNormalized(t *testing.T) {
	unix := "# Title\nline one\nline two\n"
	windows := "# Title\r\nline one\r\nline two\r\n"
	mac := "# Title\rline one\rline two\r"

	assert.Equal(t, Digest(unix), Digest(windows))
	assert.Equal(t, Digest(unix), Digest(mac))
	assert.NotEqual(t, Digest(unix), Digest("# Title\nline one\n"))
	assert.Len(t, Digest(unix), 64)
	assert.True(t, ValidDigest(Digest(unix)))
}

func TestValidDigest(t *testing.T) {
	assert.False(t, ValidDigest(""))
	assert.False(t, ValidDigest("../../etc/passwd"))
	assert.False(t, ValidDigest(Digest("x")[:63]+"Z"))
}

func TestDiskStore_PutGet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blobs")
	store := NewDiskStore(dir, ".md")

	digest, err := store.Put("hello\r\nworld")
	require.NoError(t, err)
	assert.Equal(t, Digest("hello\nworld"), digest)

	text, err := store.Get(digest)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", text)

	assert.Equal(t, []string{digest + ".md"}, blobFiles(t, dir))
	assert.True(t, store.Has(digest))
}

func TestDiskStore_IdempotentPut(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir, ".md")
	links := countLinks(t)

	d1, err := store.Put("same body\r\n")
	require.NoError(t, err)
	d2, err := store.Put("same body\n")
	require.NoError(t, err)
	d3, err := store.Put("same body\n")
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Equal(t, d2, d3)
	assert.Equal(t, int32(1), links.Load(), "expected exactly one physical write")
	assert.Len(t, blobFiles(t, dir), 1)
}

func TestDiskStore_WriteOnceKeepsModTime(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir, ".md")

	digest, err := store.Put("immutable")
	require.NoError(t, err)

	path := filepath.Join(dir, digest+".md")
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, past, past))

	_, err = store.Put("immutable")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past), "existing blob must not be rewritten")
}

func TestDiskStore_GetNotFound(t *testing.T) {
	store := NewDiskStore(t.TempDir(), ".md")

	_, err := store.Get(Digest("never written"))
	var nf *model.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, Digest("never written"), nf.Digest)

	_, err = store.Get("../escape")
	assert.True(t, errors.As(err, &nf))
}

func TestDiskStore_WriteFailure(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir, ".md")

	orig := linkFunc
	linkFunc = func(string, string) error { return os.ErrPermission }
	t.Cleanup(func() { linkFunc = orig })

	_, err := store.Put("doomed")
	var we *model.StorageWriteError
	require.True(t, errors.As(err, &we))
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Empty(t, blobFiles(t, dir), "temp file must be cleaned up")
}

func TestDiskStore_DefaultExtension(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir, "")

	digest, err := store.Put("x")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, digest+".md"))
}
