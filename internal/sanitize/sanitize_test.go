package sanitize

import (
	"strings"
	"testing"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase",
			input:    "lexd_chunks",
			expected: "lexd_chunks",
		},
		{
			name:     "uppercase conversion",
			input:    "LexdChunks",
			expected: "lexdchunks",
		},
		{
			name:     "case caption",
			input:    "Smith v. Jones",
			expected: "smith_v_jones",
		},
		{
			name:     "matter number with dashes",
			input:    "APA-2024 Chunks",
			expected: "apa_2024_chunks",
		},
		{
			name:     "special characters",
			input:    "closing-binder!@#$%",
			expected: "closing_binder",
		},
		{
			name:     "multiple underscores collapsed",
			input:    "foo___bar",
			expected: "foo_bar",
		},
		{
			name:     "leading/trailing underscores trimmed",
			input:    "_foo_bar_",
			expected: "foo_bar",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "default",
		},
		{
			name:     "only invalid chars",
			input:    "!!!",
			expected: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Identifier(tt.input)
			if got != tt.expected {
				t.Errorf("Identifier(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIdentifierTruncation(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := Identifier(long)

	if len(got) > MaxIdentifierLength {
		t.Errorf("Identifier(long) length = %d, want <= %d", len(got), MaxIdentifierLength)
	}
	if !strings.HasPrefix(got, strings.Repeat("a", MaxIdentifierLength-HashSuffixLength)) {
		t.Errorf("Identifier(long) = %q, want truncated prefix preserved", got)
	}

	// Same input must hash to the same name
	if again := Identifier(long); again != got {
		t.Errorf("Identifier not deterministic: %q vs %q", got, again)
	}

	// Two long names sharing a prefix must stay distinct
	other := Identifier(long + "b")
	if other == got {
		t.Errorf("distinct long names collapsed to %q", got)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"default collection", "lexd_chunks", true},
		{"digits", "matter_2024", true},
		{"single char", "x", true},
		{"max length", strings.Repeat("a", 64), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 65), false},
		{"uppercase", "Lexd_Chunks", false},
		{"dash", "lexd-chunks", false},
		{"space", "lexd chunks", false},
		{"dot", "lexd.chunks", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.input); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIdentifierOutputIsValid(t *testing.T) {
	inputs := []string{
		"Smith v. Jones", "APA #2024!", "", "!!!", strings.Repeat("x", 200),
		"Überlegung", "chunks/2024", "a--b--c",
	}
	for _, in := range inputs {
		if got := Identifier(in); !Valid(got) {
			t.Errorf("Identifier(%q) = %q, which Valid rejects", in, got)
		}
	}
}
