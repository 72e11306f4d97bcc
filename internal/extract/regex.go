// Package extract provides regex-based entity extraction and document-level
// metadata extraction for legal documents, plus the contract for external
// named-entity recognizers.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/entity"
)

// ErrInvalidPattern indicates a pattern that does not compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// Pattern defines a regex entity pattern with its category and confidence.
type Pattern struct {
	Name       string
	Category   entity.Category
	Regex      string
	Confidence float64
}

// compiledPattern holds a pre-compiled regex pattern.
type compiledPattern struct {
	Pattern
	regex *regexp.Regexp
}

// RegexExtractor finds entity candidates by pattern matching. Candidates go
// to the merger as the lowest-priority source; the regex layer exists to
// catch values the annotator never marked.
type RegexExtractor struct {
	patterns []*compiledPattern
	logger   *zap.Logger
}

// NewRegexExtractor creates an extractor from the given patterns.
// Passing nil uses DefaultPatterns().
func NewRegexExtractor(patterns []Pattern, logger *zap.Logger) (*RegexExtractor, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	compiled := make([]*compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("%w: compiling %q: %v", ErrInvalidPattern, p.Name, err)
		}
		compiled = append(compiled, &compiledPattern{Pattern: p, regex: re})
	}

	return &RegexExtractor{patterns: compiled, logger: logger}, nil
}

// Extract returns every pattern match in the text as a REGEX-source entity
// candidate. Offsets are byte offsets into text. Overlapping matches are
// allowed here; the merger resolves them.
func (e *RegexExtractor) Extract(text string) []entity.ClassifiedEntity {
	var candidates []entity.ClassifiedEntity
	for _, p := range e.patterns {
		for _, loc := range p.regex.FindAllStringIndex(text, -1) {
			candidates = append(candidates, entity.ClassifiedEntity{
				Span: entity.ColorSpan{
					Start: loc[0],
					End:   loc[1],
					Text:  text[loc[0]:loc[1]],
				},
				Category:   p.Category,
				Confidence: p.Confidence,
				Source:     entity.SourceRegex,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Span.Start != candidates[j].Span.Start {
			return candidates[i].Span.Start < candidates[j].Span.Start
		}
		return candidates[i].Span.End < candidates[j].Span.End
	})
	return candidates
}

// DefaultPatterns returns the built-in pattern set for purchase-agreement
// style documents. Party roles are matched capitalized only: in agreements
// the defined roles are proper nouns, and lowercase "company" is prose.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:       "amount",
			Category:   entity.CategoryAmount,
			Regex:      `\$[0-9][0-9,]*(?:\.[0-9]{2})?(?:\s*(?:million|billion|thousand))?`,
			Confidence: 0.75,
		},
		{
			Name:       "percent",
			Category:   entity.CategoryPercent,
			Regex:      `[0-9]+(?:\.[0-9]+)?\s*(?:%|percent)`,
			Confidence: 0.8,
		},
		{
			Name:       "party_role",
			Category:   entity.CategoryParty,
			Regex:      `\b(?:Buyer|Seller|Purchaser|Company|Parent|Guarantor)s?\b`,
			Confidence: 0.85,
		},
		{
			Name:       "date",
			Category:   entity.CategoryDate,
			Regex:      `(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+[0-9]{1,2},\s+[0-9]{4}`,
			Confidence: 0.8,
		},
		{
			Name:       "duration",
			Category:   entity.CategoryDuration,
			Regex:      `\b[0-9]+\s+(?:business\s+)?(?:days?|months?|years?)\b`,
			Confidence: 0.75,
		},
		{
			Name:       "crossref",
			Category:   entity.CategoryCrossRef,
			Regex:      `(?:Section|Article|Clause|Exhibit|Schedule)\s+[0-9]+(?:\.[0-9]+)*`,
			Confidence: 0.85,
		},
		{
			Name:       "defined_term",
			Category:   entity.CategoryDefinedTerm,
			Regex:      `"[A-Z][A-Za-z][A-Za-z ]{1,40}"`,
			Confidence: 0.7,
		},
	}
}
