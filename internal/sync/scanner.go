package sync

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/davsync/davsync/internal/utils"
)

// Scanner walks local roots and produces file entries. Every call re-walks
// from scratch; results are sorted by relative path so a fixed directory
// state always yields the same sequence.
type Scanner struct {
	ignore *IgnoreList

	// exclude holds absolute paths never handed to the engine, such as the
	// fingerprint document and its lock/tmp siblings when they live inside
	// a root.
	exclude map[string]bool
}

// NewScanner creates a scanner. excludePaths are absolute local paths to
// leave out of every scan.
func NewScanner(ignore *IgnoreList, excludePaths ...string) *Scanner {
	exclude := make(map[string]bool, len(excludePaths))
	for _, p := range excludePaths {
		exclude[filepath.Clean(p)] = true
	}
	if ignore == nil {
		ignore = NewIgnoreList(nil)
	}
	return &Scanner{ignore: ignore, exclude: exclude}
}

// Scan walks root recursively and returns all regular files, sorted by
// relative path, plus the number of entries skipped with a warning. Symlinks
// and unreadable entries are skipped, not fatal.
func (s *Scanner) Scan(root string) ([]FileEntry, int, error) {
	matcher := s.ignore.ForRoot(root)
	warnings := 0
	var entries []FileEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return fmt.Errorf("scan root %s: %w", root, walkErr)
			}
			slog.Warn("scan: skipping unreadable entry", "path", path, "error", walkErr)
			warnings++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if s.exclude[filepath.Clean(path)] {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			slog.Warn("scan: skipping symlink", "path", path)
			warnings++
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			slog.Warn("scan: skipping irregular file", "path", path)
			warnings++
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("scan rel path: %w", err)
		}
		relPath = utils.NormPath(relPath)

		if matcher.MatchesPath(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("scan: failed to stat file", "path", path, "error", err)
			warnings++
			return nil
		}

		entries = append(entries, FileEntry{
			RelPath: relPath,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, warnings, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelPath < entries[j].RelPath
	})

	return entries, warnings, nil
}
