package sync

import (
	"context"
	"log/slog"
	"path"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/davsync/davsync/internal/webdav"
)

// uploadJob is one scheduled transfer: a changed or new local file plus the
// digest computed during detection.
type uploadJob struct {
	rootID     string
	remotePath string
	entry      FileEntry
	hash       string
}

// Coordinator executes uploads with bounded concurrency. It never touches
// the fingerprint store; every result is emitted as an Outcome for the
// engine to apply.
type Coordinator struct {
	client      *webdav.Client
	concurrency int

	mu      sync.Mutex
	ensured map[string]bool
}

// NewCoordinator creates a transfer coordinator uploading through client
// with at most concurrency parallel transfers.
func NewCoordinator(client *webdav.Client, concurrency int) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		client:      client,
		concurrency: concurrency,
		ensured:     make(map[string]bool),
	}
}

// Transfer uploads all jobs and streams one Outcome per attempted job onto
// results, in completion order. Jobs not yet started when ctx is cancelled
// are abandoned without an outcome, as if never scheduled. The channel is
// closed when all workers are done.
func (c *Coordinator) Transfer(ctx context.Context, jobs []uploadJob, results chan<- Outcome) {
	defer close(results)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				// abandoned in-flight slot, no outcome
				return nil
			}
			results <- c.upload(gctx, job)
			return nil
		})
	}

	g.Wait()
}

func (c *Coordinator) upload(ctx context.Context, job uploadJob) Outcome {
	if err := c.ensureCollection(ctx, path.Dir(job.remotePath)); err != nil {
		slog.Error("transfer", "op", "mkcol", "path", job.remotePath, "error", err)
		return Outcome{
			RootID:  job.rootID,
			RelPath: job.entry.RelPath,
			Status:  StatusFailed,
			Size:    job.entry.Size,
			Err:     err,
		}
	}

	if err := c.client.Put(ctx, job.remotePath, job.entry.AbsPath); err != nil {
		slog.Error("transfer", "op", "put", "path", job.remotePath, "error", err)
		return Outcome{
			RootID:  job.rootID,
			RelPath: job.entry.RelPath,
			Status:  StatusFailed,
			Size:    job.entry.Size,
			Err:     err,
		}
	}

	slog.Info("transfer", "op", "put", "path", job.remotePath, "size", job.entry.Size)
	return Outcome{
		RootID:  job.rootID,
		RelPath: job.entry.RelPath,
		Status:  StatusUploaded,
		Size:    job.entry.Size,
		Fingerprint: &Fingerprint{
			Hash:     job.hash,
			SyncedAt: time.Now().UTC(),
		},
	}
}

// ensureCollection creates the remote collection chain for dir once per run.
func (c *Coordinator) ensureCollection(ctx context.Context, dir string) error {
	if dir == "." || dir == "/" || dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ensured[dir] {
		return nil
	}

	if err := c.client.MkColAll(ctx, dir); err != nil {
		return err
	}
	c.ensured[dir] = true
	return nil
}
