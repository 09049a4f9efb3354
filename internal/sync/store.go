package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/davsync/davsync/internal/utils"
)

var (
	// ErrStoreCorrupt means the persisted fingerprint document exists but
	// cannot be parsed. The run must abort before touching the remote.
	ErrStoreCorrupt = errors.New("fingerprint store corrupt")

	// ErrStorePersist means the fingerprint document could not be durably
	// written.
	ErrStorePersist = errors.New("fingerprint store persist failed")

	// ErrStoreLocked means another davsync process holds the store lock.
	ErrStoreLocked = errors.New("fingerprint store locked by another process")
)

// Fingerprint is the last-known content state for one file.
type Fingerprint struct {
	// Hash is the hex-encoded SHA-256 digest of the file content.
	Hash string `yaml:"hash"`

	// SyncedAt is when the upload producing this record was confirmed.
	SyncedAt time.Time `yaml:"synced_at"`
}

// storeDocument is the on-disk shape of the store: one YAML document keyed by
// `<root id>/<relative path>`, editable by hand.
type storeDocument struct {
	Fingerprints map[string]*Fingerprint `yaml:"fingerprints"`
}

// Store owns the in-memory fingerprint mapping and its persisted document.
// All mutation goes through the store; transfer workers only propose updates
// as Outcomes, which the engine applies here one at a time.
type Store struct {
	path  string
	flock *flock.Flock

	mu           sync.RWMutex
	fingerprints map[string]*Fingerprint
}

// NewStore creates a store around the document at path. Nothing is read until
// Load.
func NewStore(path string) *Store {
	return &Store{
		path:         path,
		flock:        flock.New(path + ".lock"),
		fingerprints: make(map[string]*Fingerprint),
	}
}

// Path returns the location of the persisted document.
func (s *Store) Path() string {
	return s.path
}

// Lock takes an exclusive file lock next to the document so two runs cannot
// interleave their persists.
func (s *Store) Lock() error {
	if err := utils.EnsureParent(s.path); err != nil {
		return fmt.Errorf("store lock: %w", err)
	}
	locked, err := s.flock.TryLock()
	if err != nil {
		return fmt.Errorf("store lock: %w", err)
	}
	if !locked {
		return ErrStoreLocked
	}
	return nil
}

// Unlock releases the file lock.
func (s *Store) Unlock() error {
	return s.flock.Unlock()
}

// Load reads the persisted document into memory. A missing document yields an
// empty store; an unparseable one fails with ErrStoreCorrupt.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}

	doc, err := parseDocument(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// extend, never replace: entries for roots not part of this run survive
	for key, fp := range doc.Fingerprints {
		s.fingerprints[key] = fp
	}
	return nil
}

// Merge folds a remote copy of the document into the store. Existing local
// entries win; only keys absent locally are adopted.
func (s *Store) Merge(data []byte) error {
	doc, err := parseDocument(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, fp := range doc.Fingerprints {
		if _, ok := s.fingerprints[key]; !ok {
			s.fingerprints[key] = fp
		}
	}
	return nil
}

func parseDocument(data []byte) (*storeDocument, error) {
	var doc storeDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	if doc.Fingerprints == nil {
		doc.Fingerprints = make(map[string]*Fingerprint)
	}
	return &doc, nil
}

// Key builds the store key for a file: the root id joined with the
// forward-slash relative path.
func Key(rootID, relPath string) string {
	return path.Join(rootID, relPath)
}

// Get returns the stored fingerprint for a file, if any.
func (s *Store) Get(rootID, relPath string) (*Fingerprint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fp, ok := s.fingerprints[Key(rootID, relPath)]
	return fp, ok
}

// Apply upserts a fingerprint in memory. It never persists by itself.
func (s *Store) Apply(rootID, relPath string, fp *Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprints[Key(rootID, relPath)] = fp
}

// Len returns the number of records held in memory.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fingerprints)
}

// Entries returns a copy of the in-memory mapping.
func (s *Store) Entries() map[string]Fingerprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Fingerprint, len(s.fingerprints))
	for key, fp := range s.fingerprints {
		out[key] = *fp
	}
	return out
}

// MarshalDocument renders the current mapping as the on-disk YAML document.
func (s *Store) MarshalDocument() ([]byte, error) {
	s.mu.RLock()
	doc := storeDocument{Fingerprints: make(map[string]*Fingerprint, len(s.fingerprints))}
	for key, fp := range s.fingerprints {
		doc.Fingerprints[key] = fp
	}
	s.mu.RUnlock()

	return yaml.Marshal(&doc)
}

// Save writes the complete mapping to the document using write-then-rename:
// the new content lands in a temp file first and replaces the old document
// only after it was fully written and synced. A kill mid-save leaves either
// the old document or the new one, never a torn write.
func (s *Store) Save() error {
	data, err := s.MarshalDocument()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}

	if err := utils.EnsureParent(s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}

	tmpPath := s.path + ".tmp"
	if err := writeAndSync(tmpPath, data); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}

	slog.Debug("fingerprint store saved", "path", s.path, "records", s.Len())
	return nil
}

func writeAndSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
