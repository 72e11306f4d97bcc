package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidPattern indicates a glob pattern is malformed or dangerous.
var ErrInvalidPattern = errors.New("invalid or dangerous pattern")

// dangerousPatternChars are characters that could cause ReDoS or shell
// injection if a pattern ever reaches a shell or regex engine.
var dangerousPatternChars = regexp.MustCompile(`[;\|\$\x60\\<>&\(\)\{\}]|\.{3,}|\*{3,}`)

// ValidateGlobPattern checks a glob pattern for dangerous constructs.
// Returns nil if the pattern is safe, or an error describing the issue.
func ValidateGlobPattern(pattern string) error {
	if pattern == "" {
		return nil // Empty pattern is allowed
	}

	if dangerousPatternChars.MatchString(pattern) {
		return fmt.Errorf("%w: contains dangerous characters", ErrInvalidPattern)
	}

	if strings.Contains(pattern, "..") {
		return fmt.Errorf("%w: contains path traversal", ErrInvalidPattern)
	}

	// Validate the pattern compiles (catches malformed patterns)
	_, err := filepath.Match(pattern, "test")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	return nil
}

// ValidateGlobPatterns validates a slice of glob patterns.
func ValidateGlobPatterns(patterns []string) error {
	for i, p := range patterns {
		if err := ValidateGlobPattern(p); err != nil {
			return fmt.Errorf("pattern[%d] %q: %w", i, p, err)
		}
	}
	return nil
}
