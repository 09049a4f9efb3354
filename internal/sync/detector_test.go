package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryFor(t *testing.T, path string) FileEntry {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return FileEntry{
		RelPath: filepath.Base(path),
		AbsPath: path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("test content for hashing"), 0o644))

	hash, err := HashFile(path)
	require.NoError(t, err)
	assert.Len(t, hash, 64) // sha256 hex

	again, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, hash, again)
}

func TestClassify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	entry := entryFor(t, path)

	d := NewDetector()

	verdict, hash, err := d.Classify(entry, nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictNew, verdict)
	assert.Len(t, hash, 64)

	verdict, _, err = d.Classify(entry, &Fingerprint{Hash: hash})
	require.NoError(t, err)
	assert.Equal(t, VerdictUnchanged, verdict)

	verdict, newHash, err := d.Classify(entry, &Fingerprint{Hash: "0000"})
	require.NoError(t, err)
	assert.Equal(t, VerdictChanged, verdict)
	assert.Equal(t, hash, newHash)
}

func TestClassifyMissingFile(t *testing.T) {
	d := NewDetector()
	entry := FileEntry{AbsPath: filepath.Join(t.TempDir(), "gone.txt")}
	_, _, err := d.Classify(entry, nil)
	assert.Error(t, err)
}

func TestHashCacheReusedWithinRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("aaaa"), 0o644))
	entry := entryFor(t, path)

	d := NewDetector()
	first, err := d.Hash(entry)
	require.NoError(t, err)

	// rewrite with identical size and restore the mtime: the same-run cache
	// must short-circuit re-hashing on unchanged metadata
	require.NoError(t, os.WriteFile(path, []byte("bbbb"), 0o644))
	require.NoError(t, os.Chtimes(path, entry.ModTime, entry.ModTime))

	cached, err := d.Hash(entry)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	// changed metadata invalidates the cache
	later := entry.ModTime.Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))
	changedEntry := entryFor(t, path)

	fresh, err := d.Hash(changedEntry)
	require.NoError(t, err)
	assert.NotEqual(t, first, fresh)
}
