package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Detector computes content fingerprints and classifies entries against the
// store. A size+mtime cache avoids re-hashing a file the same run already
// hashed; metadata is never trusted as the sole change signal against the
// persisted store.
type Detector struct {
	mu    sync.Mutex
	cache map[string]hashCacheEntry
}

type hashCacheEntry struct {
	size    int64
	modTime time.Time
	hash    string
}

func NewDetector() *Detector {
	return &Detector{
		cache: make(map[string]hashCacheEntry),
	}
}

// Hash returns the hex SHA-256 digest of the entry's content, reusing a
// digest computed earlier in this run when size and mtime are unchanged.
func (d *Detector) Hash(entry FileEntry) (string, error) {
	d.mu.Lock()
	cached, ok := d.cache[entry.AbsPath]
	d.mu.Unlock()

	if ok && cached.size == entry.Size && cached.modTime.Equal(entry.ModTime) {
		return cached.hash, nil
	}

	hash, err := HashFile(entry.AbsPath)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.cache[entry.AbsPath] = hashCacheEntry{
		size:    entry.Size,
		modTime: entry.ModTime,
		hash:    hash,
	}
	d.mu.Unlock()

	return hash, nil
}

// Classify hashes the entry and compares it against the stored fingerprint.
// No record means New, a differing digest means Changed.
func (d *Detector) Classify(entry FileEntry, prior *Fingerprint) (Verdict, string, error) {
	hash, err := d.Hash(entry)
	if err != nil {
		return VerdictNew, "", err
	}

	switch {
	case prior == nil:
		return VerdictNew, hash, nil
	case prior.Hash != hash:
		return VerdictChanged, hash, nil
	default:
		return VerdictUnchanged, hash, nil
	}
}

// HashFile computes the streaming SHA-256 digest of a file as a 64-char hex
// string.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
