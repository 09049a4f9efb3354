package sync

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/davsync/davsync/internal/utils"
)

// IgnoreFileName is picked up from the top of each sync root.
const IgnoreFileName = ".davsyncignore"

// always excluded, on top of any user patterns
var defaultIgnoreLines = []string{
	IgnoreFileName,
	".davsync/",
}

// IgnoreList decides which relative paths a scan leaves out, using gitignore
// pattern syntax. Configured patterns apply to every root; each root may add
// its own patterns through a .davsyncignore file.
type IgnoreList struct {
	base []string
}

// NewIgnoreList builds an ignore list from configured patterns.
func NewIgnoreList(patterns []string) *IgnoreList {
	return &IgnoreList{base: patterns}
}

// ForRoot compiles the matcher for one root, folding in the root's
// .davsyncignore file when present.
func (l *IgnoreList) ForRoot(root string) *gitignore.GitIgnore {
	lines := make([]string, 0, len(defaultIgnoreLines)+len(l.base))
	lines = append(lines, defaultIgnoreLines...)
	lines = append(lines, l.base...)

	ignorePath := filepath.Join(root, IgnoreFileName)
	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				lines = append(lines, line)
			}
		}
	}

	return gitignore.CompileIgnoreLines(lines...)
}
