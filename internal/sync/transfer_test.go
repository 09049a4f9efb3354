package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davsync/davsync/internal/webdav"
	"github.com/davsync/davsync/internal/webdav/webdavtest"
)

func TestTransferBoundedConcurrency(t *testing.T) {
	srv := webdavtest.New()
	defer srv.Close()
	srv.PutDelay = 25 * time.Millisecond

	root := t.TempDir()
	var jobs []uploadJob
	for i := 0; i < 6; i++ {
		rel := fmt.Sprintf("f%d.txt", i)
		abs := writeFile(t, root, rel, rel)
		hash, err := HashFile(abs)
		require.NoError(t, err)
		jobs = append(jobs, uploadJob{
			rootID:     "data",
			remotePath: Key("data", rel),
			entry:      FileEntry{RelPath: rel, AbsPath: abs, Size: int64(len(rel))},
			hash:       hash,
		})
	}

	client := webdav.New(&webdav.Options{BaseURL: srv.URL, Timeout: 10 * time.Second})
	coord := NewCoordinator(client, 2)

	results := make(chan Outcome)
	go coord.Transfer(context.Background(), jobs, results)

	var outcomes []Outcome
	for o := range results {
		outcomes = append(outcomes, o)
	}

	require.Len(t, outcomes, 6)
	for _, o := range outcomes {
		assert.Equal(t, StatusUploaded, o.Status)
		require.NotNil(t, o.Fingerprint)
		assert.Len(t, o.Fingerprint.Hash, 64)
	}
	assert.LessOrEqual(t, srv.MaxConcurrentPuts(), 2, "concurrency bound exceeded")
	assert.Equal(t, 6, srv.TotalPuts())
}

func TestTransferCreatesCollectionsOnce(t *testing.T) {
	srv := webdavtest.New()
	defer srv.Close()

	root := t.TempDir()
	absA := writeFile(t, root, "a.txt", "a")
	absB := writeFile(t, root, "b.txt", "b")

	client := webdav.New(&webdav.Options{BaseURL: srv.URL, Timeout: 10 * time.Second})
	coord := NewCoordinator(client, 2)

	jobs := []uploadJob{
		{rootID: "x/y", remotePath: "x/y/a.txt", entry: FileEntry{RelPath: "a.txt", AbsPath: absA}, hash: "h1"},
		{rootID: "x/y", remotePath: "x/y/b.txt", entry: FileEntry{RelPath: "b.txt", AbsPath: absB}, hash: "h2"},
	}

	results := make(chan Outcome)
	go coord.Transfer(context.Background(), jobs, results)
	for o := range results {
		assert.Equal(t, StatusUploaded, o.Status)
	}

	assert.True(t, srv.HasDir("x"))
	assert.True(t, srv.HasDir("x/y"))
}

func TestTransferEmptyJobs(t *testing.T) {
	client := webdav.New(&webdav.Options{BaseURL: "http://127.0.0.1:0"})
	coord := NewCoordinator(client, 2)

	results := make(chan Outcome)
	go coord.Transfer(context.Background(), nil, results)

	_, open := <-results
	assert.False(t, open, "results channel must be closed")
}
