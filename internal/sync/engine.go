// Package sync implements the incremental synchronization engine: scanning
// local roots, detecting content changes against a persisted fingerprint
// store and uploading changed files to a WebDAV endpoint.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"path"

	"github.com/davsync/davsync/internal/config"
	"github.com/davsync/davsync/internal/utils"
	"github.com/davsync/davsync/internal/webdav"
)

// Options tune one engine run.
type Options struct {
	// DryRun classifies and reports without uploading or persisting.
	DryRun bool
}

// Result aggregates the per-file outcomes of one run.
type Result struct {
	Unchanged     int
	Uploaded      int
	UploadedBytes int64
	Failed        int
	Planned       int
	ScanWarnings  int
	Outcomes      []Outcome
}

// Ok reports whether every classified file ended unchanged or uploaded.
func (r *Result) Ok() bool {
	return r.Failed == 0
}

// Engine drives one synchronization invocation end to end: load store, scan,
// detect, transfer, persist. The engine is the single writer of the store;
// transfer workers only propose updates through Outcomes.
type Engine struct {
	cfg         *config.Config
	client      *webdav.Client
	store       *Store
	scanner     *Scanner
	detector    *Detector
	coordinator *Coordinator
	dryRun      bool
}

// NewEngine wires an engine from a validated config and a WebDAV client.
func NewEngine(cfg *config.Config, client *webdav.Client, opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}

	store := NewStore(cfg.StorePath)
	scanner := NewScanner(
		NewIgnoreList(cfg.Ignore),
		cfg.StorePath,
		cfg.StorePath+".tmp",
		cfg.StorePath+".lock",
	)

	return &Engine{
		cfg:         cfg,
		client:      client,
		store:       store,
		scanner:     scanner,
		detector:    NewDetector(),
		coordinator: NewCoordinator(client, cfg.MaxConcurrency),
		dryRun:      opts.DryRun,
	}
}

// Store exposes the fingerprint store, e.g. for inspection commands.
func (e *Engine) Store() *Store {
	return e.store
}

// Run performs one synchronization pass over all configured roots.
//
// The persist step is deferred around the transferring stages so that it runs
// on every exit path: normal completion, partial failure and cancellation.
// Fingerprints earned by uploads that confirmed before an interruption are
// never lost.
func (e *Engine) Run(ctx context.Context) (res *Result, err error) {
	res = &Result{}

	if lockErr := e.store.Lock(); lockErr != nil {
		return res, lockErr
	}
	defer e.store.Unlock()

	// a corrupt store aborts before any remote side effect
	if loadErr := e.store.Load(); loadErr != nil {
		return res, loadErr
	}
	slog.Debug("fingerprint store loaded", "path", e.store.Path(), "records", e.store.Len())

	e.mergeRemoteStore(ctx)

	if !e.dryRun {
		defer func() {
			if perr := e.persist(); perr != nil {
				if err == nil || errors.Is(err, context.Canceled) {
					err = perr
				}
			}
		}()
	}

	for _, root := range e.cfg.Roots {
		if ctx.Err() != nil {
			break
		}
		e.syncRoot(ctx, root, res)
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, nil
}

// syncRoot scans, classifies and transfers one root. Failures of individual
// files never abort the root.
func (e *Engine) syncRoot(ctx context.Context, root config.SyncRoot, res *Result) {
	if !utils.DirExists(root.Local) {
		slog.Warn("root does not exist, skipping", "root", root.Local)
		res.ScanWarnings++
		return
	}

	entries, warnings, err := e.scanner.Scan(root.Local)
	res.ScanWarnings += warnings
	if err != nil {
		slog.Warn("scan failed, skipping root", "root", root.Local, "error", err)
		res.ScanWarnings++
		return
	}
	slog.Debug("scanned root", "root", root.Local, "files", len(entries), "warnings", warnings)

	rootID := root.ID()
	var jobs []uploadJob

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		prior, _ := e.store.Get(rootID, entry.RelPath)
		verdict, hash, err := e.detector.Classify(entry, prior)
		if err != nil {
			slog.Warn("failed to fingerprint file, skipping", "path", entry.AbsPath, "error", err)
			res.ScanWarnings++
			continue
		}

		remotePath := Key(rootID, entry.RelPath)

		if verdict == VerdictUnchanged && e.cfg.VerifyRemote {
			exists, err := e.client.Exists(ctx, remotePath)
			switch {
			case err != nil:
				res.Failed++
				res.Outcomes = append(res.Outcomes, Outcome{
					RootID:  rootID,
					RelPath: entry.RelPath,
					Status:  StatusFailed,
					Err:     err,
				})
				continue
			case !exists:
				// stale local fingerprint, the remote copy is gone
				verdict = VerdictNew
			}
		}

		if verdict == VerdictUnchanged {
			res.Unchanged++
			res.Outcomes = append(res.Outcomes, Outcome{
				RootID:  rootID,
				RelPath: entry.RelPath,
				Status:  StatusUnchanged,
			})
			continue
		}

		slog.Debug("detected change", "path", remotePath, "verdict", verdict.String())

		if e.dryRun {
			slog.Info("would upload", "path", remotePath, "verdict", verdict.String())
			res.Planned++
			res.Outcomes = append(res.Outcomes, Outcome{
				RootID:  rootID,
				RelPath: entry.RelPath,
				Status:  StatusPlanned,
			})
			continue
		}

		jobs = append(jobs, uploadJob{
			rootID:     rootID,
			remotePath: remotePath,
			entry:      entry,
			hash:       hash,
		})
	}

	if len(jobs) == 0 {
		return
	}

	// single-writer funnel: workers emit outcomes, only this loop touches
	// the store, in completion order
	results := make(chan Outcome)
	go e.coordinator.Transfer(ctx, jobs, results)

	for outcome := range results {
		switch outcome.Status {
		case StatusUploaded:
			e.store.Apply(outcome.RootID, outcome.RelPath, outcome.Fingerprint)
			res.Uploaded++
			res.UploadedBytes += outcome.Size
		case StatusFailed:
			res.Failed++
		}
		res.Outcomes = append(res.Outcomes, outcome)
	}
}

// mergeRemoteStore folds the remote copy of the fingerprint document into the
// local store before the run. Any failure here degrades to an empty merge;
// the worst case is a redundant re-upload, never data loss.
func (e *Engine) mergeRemoteStore(ctx context.Context) {
	if e.cfg.RemoteStorePath == "" {
		return
	}

	remote := utils.NormPath(e.cfg.RemoteStorePath)
	data, found, err := e.client.Get(ctx, remote)
	if err != nil {
		slog.Warn("failed to fetch remote fingerprint store", "path", remote, "error", err)
		return
	}
	if !found {
		slog.Debug("no remote fingerprint store", "path", remote)
		return
	}

	if err := e.store.Merge(data); err != nil {
		slog.Warn("remote fingerprint store unparseable, ignoring", "path", remote, "error", err)
		return
	}
	slog.Debug("merged remote fingerprint store", "path", remote, "records", e.store.Len())
}

// persist flushes the store to disk and mirrors the document to the remote
// endpoint when configured. The local save is the crash-safety anchor; the
// remote mirror is best effort.
func (e *Engine) persist() error {
	if err := e.store.Save(); err != nil {
		slog.Error("failed to persist fingerprint store", "error", err)
		return err
	}

	e.uploadRemoteStore()
	return nil
}

func (e *Engine) uploadRemoteStore() {
	if e.cfg.RemoteStorePath == "" {
		return
	}

	timeout := e.cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	// deliberately not the run context: the mirror must still go out when
	// the run was interrupted
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	remote := utils.NormPath(e.cfg.RemoteStorePath)
	if dir := path.Dir(remote); dir != "." {
		if err := e.client.MkColAll(ctx, dir); err != nil {
			slog.Warn("failed to mirror fingerprint store", "path", remote, "error", err)
			return
		}
	}

	if err := e.client.Put(ctx, remote, e.store.Path()); err != nil {
		slog.Warn("failed to mirror fingerprint store", "path", remote, "error", err)
		return
	}
	slog.Debug("mirrored fingerprint store", "path", remote)
}
