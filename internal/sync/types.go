package sync

import (
	"time"
)

// FileEntry describes one local file found by a scan. Entries are produced
// fresh on every scan and never persisted.
type FileEntry struct {
	// RelPath is the forward-slash path relative to the scanned root.
	RelPath string

	// AbsPath is the absolute local path.
	AbsPath string

	Size    int64
	ModTime time.Time
}

// Verdict classifies a file against its stored fingerprint.
type Verdict int

const (
	VerdictUnchanged Verdict = iota
	VerdictChanged
	VerdictNew
)

func (v Verdict) String() string {
	switch v {
	case VerdictUnchanged:
		return "unchanged"
	case VerdictChanged:
		return "changed"
	case VerdictNew:
		return "new"
	default:
		return "unknown"
	}
}

// OutcomeStatus is the per-file result of one run.
type OutcomeStatus int

const (
	StatusUnchanged OutcomeStatus = iota
	StatusUploaded
	StatusFailed
	// StatusPlanned marks a file that would have been uploaded in a dry run.
	StatusPlanned
)

func (s OutcomeStatus) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusUploaded:
		return "uploaded"
	case StatusFailed:
		return "failed"
	case StatusPlanned:
		return "planned"
	default:
		return "unknown"
	}
}

// Outcome is the result for one file. Failed outcomes carry the reason in
// Err; Uploaded outcomes carry the Fingerprint to apply to the store.
type Outcome struct {
	RootID      string
	RelPath     string
	Status      OutcomeStatus
	Size        int64
	Err         error
	Fingerprint *Fingerprint
}
