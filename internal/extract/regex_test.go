package extract

import (
	"errors"
	"testing"

	"github.com/fyrsmithlabs/lexd/internal/entity"
)

const sampleClause = `The Buyer shall pay $5,000,000 (the "Purchase Price") to Seller no later than March 1, 2024, and in any event within 90 days, pursuant to Section 2.1.`

func TestExtractDefaultPatterns(t *testing.T) {
	ex, err := NewRegexExtractor(nil, nil)
	if err != nil {
		t.Fatalf("NewRegexExtractor() error = %v", err)
	}

	got := ex.Extract(sampleClause)

	counts := make(map[entity.Category]int)
	for _, c := range got {
		counts[c.Category]++
	}

	want := map[entity.Category]int{
		entity.CategoryAmount:      1,
		entity.CategoryParty:       2,
		entity.CategoryDate:        1,
		entity.CategoryDuration:    1,
		entity.CategoryCrossRef:    1,
		entity.CategoryDefinedTerm: 1,
	}
	for cat, n := range want {
		if counts[cat] != n {
			t.Errorf("category %s: got %d candidates, want %d", cat, counts[cat], n)
		}
	}
	if counts[entity.CategoryPercent] != 0 {
		t.Errorf("category PERCENT: got %d candidates, want 0", counts[entity.CategoryPercent])
	}
}

func TestExtractCandidateShape(t *testing.T) {
	ex, err := NewRegexExtractor(nil, nil)
	if err != nil {
		t.Fatalf("NewRegexExtractor() error = %v", err)
	}

	got := ex.Extract(sampleClause)
	if len(got) == 0 {
		t.Fatal("Extract() returned no candidates")
	}

	prevStart := -1
	for _, c := range got {
		if c.Source != entity.SourceRegex {
			t.Errorf("candidate %q: source = %s, want %s", c.Span.Text, c.Source, entity.SourceRegex)
		}
		if c.Confidence <= 0 || c.Confidence > 1 {
			t.Errorf("candidate %q: confidence = %v, want in (0,1]", c.Span.Text, c.Confidence)
		}
		if sampleClause[c.Span.Start:c.Span.End] != c.Span.Text {
			t.Errorf("candidate %q: offsets [%d,%d) slice to %q",
				c.Span.Text, c.Span.Start, c.Span.End, sampleClause[c.Span.Start:c.Span.End])
		}
		if c.Span.Start < prevStart {
			t.Errorf("candidate %q at %d out of order after start %d", c.Span.Text, c.Span.Start, prevStart)
		}
		prevStart = c.Span.Start
	}
}

func TestExtractPatternValues(t *testing.T) {
	ex, err := NewRegexExtractor(nil, nil)
	if err != nil {
		t.Fatalf("NewRegexExtractor() error = %v", err)
	}

	tests := []struct {
		text     string
		category entity.Category
		match    string
	}{
		{"a fee of $1,250.50 payable", entity.CategoryAmount, "$1,250.50"},
		{"a price of $12 million in cash", entity.CategoryAmount, "$12 million"},
		{"an interest rate of 4.5% per annum", entity.CategoryPercent, "4.5%"},
		{"no less than 20 percent of the shares", entity.CategoryPercent, "20 percent"},
		{"delivered to the Purchaser at closing", entity.CategoryParty, "Purchaser"},
		{"dated as of December 31, 2023", entity.CategoryDate, "December 31, 2023"},
		{"within 10 business days after notice", entity.CategoryDuration, "10 business days"},
		{"as set forth in Exhibit 4", entity.CategoryCrossRef, "Exhibit 4"},
		{`defined as the "Closing Date" herein`, entity.CategoryDefinedTerm, `"Closing Date"`},
	}
	for _, tt := range tests {
		t.Run(tt.match, func(t *testing.T) {
			got := ex.Extract(tt.text)
			found := false
			for _, c := range got {
				if c.Category == tt.category && c.Span.Text == tt.match {
					found = true
				}
			}
			if !found {
				t.Errorf("Extract(%q) = %+v, want a %s candidate %q", tt.text, got, tt.category, tt.match)
			}
		})
	}
}

func TestExtractLowercaseRolesIgnored(t *testing.T) {
	ex, err := NewRegexExtractor(nil, nil)
	if err != nil {
		t.Fatalf("NewRegexExtractor() error = %v", err)
	}

	got := ex.Extract("the company operates as a going concern and each seller of goods")
	for _, c := range got {
		if c.Category == entity.CategoryParty {
			t.Errorf("Extract() matched lowercase prose %q as PARTY", c.Span.Text)
		}
	}
}

func TestNewRegexExtractorInvalidPattern(t *testing.T) {
	_, err := NewRegexExtractor([]Pattern{
		{Name: "broken", Category: entity.CategoryAmount, Regex: `[`, Confidence: 0.5},
	}, nil)
	if !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("NewRegexExtractor() error = %v, want ErrInvalidPattern", err)
	}
}

func TestExtractCustomPatterns(t *testing.T) {
	ex, err := NewRegexExtractor([]Pattern{
		{Name: "euro", Category: entity.CategoryAmount, Regex: `€[0-9,]+`, Confidence: 0.6},
	}, nil)
	if err != nil {
		t.Fatalf("NewRegexExtractor() error = %v", err)
	}

	got := ex.Extract("pay €1,000 on closing, plus $500 later")
	if len(got) != 1 {
		t.Fatalf("Extract() = %+v, want exactly one candidate", got)
	}
	if got[0].Span.Text != "€1,000" || got[0].Confidence != 0.6 {
		t.Errorf("Extract() = %+v, want €1,000 at confidence 0.6", got[0])
	}
}
