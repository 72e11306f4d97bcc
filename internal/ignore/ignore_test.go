package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{"empty line", "", ""},
		{"whitespace only", "   ", ""},
		{"comment", "# this is a comment", ""},
		{"negation skipped", "!important.json", ""},
		{"path pattern skipped", "drafts/old.json", ""},
		{"simple glob", "*.bak", "*.bak"},
		{"literal file", "fixtures.json", "fixtures.json"},
		{"prefix glob", "draft*", "draft*"},
		{"surrounding whitespace trimmed", "  *.bak  ", "*.bak"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLine(tt.line)
			if got != tt.expected {
				t.Errorf("parseLine(%q) = %q, want %q", tt.line, got, tt.expected)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	rules := Load(t.TempDir(), nil)

	if got, want := len(rules.Patterns()), len(DefaultPatterns); got != want {
		t.Errorf("patterns = %d, want %d defaults", got, want)
	}
}

func TestLoadCombinesFileWithDefaults(t *testing.T) {
	dir := t.TempDir()
	content := "# exclusions for this inbox\n" +
		"draft*\n" +
		"\n" +
		"!keep.json\n" +
		"*.bak\n" +
		"*.tmp\n" + // duplicate of a default
		"a|b\n" // dangerous, skipped
	if err := os.WriteFile(filepath.Join(dir, IgnoreFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules := Load(dir, nil)
	patterns := rules.Patterns()

	want := append(append([]string(nil), DefaultPatterns...), "draft*", "*.bak")
	if len(patterns) != len(want) {
		t.Fatalf("patterns = %v, want %v", patterns, want)
	}
	for i, p := range want {
		if patterns[i] != p {
			t.Errorf("patterns[%d] = %q, want %q", i, patterns[i], p)
		}
	}
}

func TestMatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, IgnoreFile), []byte("draft*\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rules := Load(dir, nil)

	tests := []struct {
		name    string
		file    string
		ignored bool
	}{
		{"regular document", "contract-2024.json", false},
		{"hidden file", ".lexdignore", true},
		{"emacs lock", ".#contract.json", true},
		{"partial write", "contract.json.partial", true},
		{"tmp file", "contract.json.tmp", true},
		{"swap file", "contract.json.swp", true},
		{"emacs autosave", "#contract.json#", true},
		{"user pattern", "draft-apa.json", true},
		{"user pattern near miss", "redraft.json", false},
		{"full path matches on base name", filepath.Join(dir, ".hidden.json"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.Match(tt.file); got != tt.ignored {
				t.Errorf("Match(%q) = %v, want %v", tt.file, got, tt.ignored)
			}
		})
	}
}

func TestLoadNeverFailsOnUnreadableFile(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits do not bind as root")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, IgnoreFile)
	if err := os.WriteFile(path, []byte("draft*\n"), 0o000); err != nil {
		t.Fatal(err)
	}

	rules := Load(dir, nil)
	if got, want := len(rules.Patterns()), len(DefaultPatterns); got != want {
		t.Errorf("patterns = %d, want %d defaults", got, want)
	}
}
