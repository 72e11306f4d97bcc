// Package ignore provides ignore-file parsing for ingest inbox directories.
//
// An inbox shared with extractors and editors accumulates files that must
// never reach the pipeline: hidden files, partial writes, editor swap and
// autosave files. Rules combine built-in defaults with an optional
// .lexdignore file in the inbox itself, one glob pattern per line.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/sanitize"
)

// IgnoreFile is the file name read from an inbox directory.
const IgnoreFile = ".lexdignore"

// DefaultPatterns always apply. They cover hidden files and the
// temporaries extractors and editors leave next to real documents.
var DefaultPatterns = []string{".*", "*.tmp", "*.partial", "*.swp", "#*#"}

// Rules is a compiled set of ignore patterns for one inbox directory.
type Rules struct {
	patterns []string
}

// Load reads dir's ignore file and combines it with DefaultPatterns.
// Loading never fails: a missing ignore file means defaults only, an
// unreadable one is logged and skipped, and invalid or dangerous
// patterns are dropped line by line.
func Load(dir string, logger *zap.Logger) *Rules {
	if logger == nil {
		logger = zap.NewNop()
	}

	patterns := append([]string(nil), DefaultPatterns...)

	path := filepath.Join(dir, IgnoreFile)
	filePatterns, err := parseFile(path, logger)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("ignore file unreadable, using defaults only",
				zap.String("path", path),
				zap.Error(err))
		}
		return &Rules{patterns: patterns}
	}

	patterns = append(patterns, filePatterns...)
	return &Rules{patterns: deduplicate(patterns)}
}

// Match reports whether a file name is ignored. Patterns match the base
// name only; the inbox is flat.
func (r *Rules) Match(name string) bool {
	name = filepath.Base(name)
	for _, pattern := range r.patterns {
		// Patterns are validated at load time, so Match cannot fail here.
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Patterns returns the active pattern list.
func (r *Rules) Patterns() []string {
	return append([]string(nil), r.patterns...)
}

// parseFile reads a single ignore file and returns its patterns.
func parseFile(path string, logger *zap.Logger) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := scanner.Text()
		pattern := parseLine(line)
		if pattern == "" {
			continue
		}
		if err := sanitize.ValidateGlobPattern(pattern); err != nil {
			logger.Warn("skipping ignore pattern",
				zap.String("pattern", pattern),
				zap.Error(err))
			continue
		}
		patterns = append(patterns, pattern)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}

// parseLine parses a single line from an ignore file.
// Returns empty string for comments and blank lines.
func parseLine(line string) string {
	line = strings.TrimSpace(line)

	// Skip empty lines
	if line == "" {
		return ""
	}

	// Skip comments
	if strings.HasPrefix(line, "#") {
		return ""
	}

	// Skip negation patterns (we don't support them for simplicity)
	if strings.HasPrefix(line, "!") {
		return ""
	}

	// Directory and path patterns make no sense in a flat inbox
	if strings.Contains(line, "/") {
		return ""
	}

	return line
}

// deduplicate removes duplicate patterns while preserving order.
func deduplicate(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	return result
}
