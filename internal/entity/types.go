// Package entity defines the document entity model and the merger that
// reconciles entity candidates from color annotations, NLP and regex sources.
package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for entity operations.
var (
	// ErrInvalidSpan indicates a span with malformed offsets (end <= start or negative start).
	ErrInvalidSpan = errors.New("invalid span offsets")

	// ErrSpanOutOfRange indicates an entity span outside its document's text.
	ErrSpanOutOfRange = errors.New("entity span out of document range")

	// ErrOverlapInvariant indicates merged output with overlapping entities of
	// the same category. This is a defect in the merge logic, never expected input.
	ErrOverlapInvariant = errors.New("overlapping same-category entities in merged output")

	// ErrInvalidConfig indicates invalid merger configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Category is the semantic entity type a color or extractor maps to.
type Category string

const (
	CategoryAmount      Category = "AMOUNT"
	CategoryPercent     Category = "PERCENT"
	CategoryParty       Category = "PARTY"
	CategoryDate        Category = "DATE"
	CategoryDuration    Category = "DURATION"
	CategoryDefinedTerm Category = "DEFINED_TERM"
	CategoryCrossRef    Category = "CROSSREF"
	CategoryQualifier   Category = "QUALIFIER"

	// CategoryNone means no confident mapping exists.
	CategoryNone Category = "NONE"
)

// Categories lists every category except CategoryNone, in stable order.
func Categories() []Category {
	return []Category{
		CategoryAmount,
		CategoryPercent,
		CategoryParty,
		CategoryDate,
		CategoryDuration,
		CategoryDefinedTerm,
		CategoryCrossRef,
		CategoryQualifier,
	}
}

// Valid reports whether c is a known category (including CategoryNone).
func (c Category) Valid() bool {
	switch c {
	case CategoryAmount, CategoryPercent, CategoryParty, CategoryDate,
		CategoryDuration, CategoryDefinedTerm, CategoryCrossRef,
		CategoryQualifier, CategoryNone:
		return true
	}
	return false
}

// Source identifies which extractor proposed an entity. The set is closed:
// adding a source means extending the constants and the priority table below.
type Source string

const (
	// SourceColor marks entities derived from color annotations.
	SourceColor Source = "COLOR"

	// SourceNLP marks entities from named-entity recognition.
	SourceNLP Source = "NLP"

	// SourceRegex marks entities from regex patterns.
	SourceRegex Source = "REGEX"
)

// Priority returns the merge priority of the source. Higher wins.
// A deliberate human annotation outranks any automated extractor.
func (s Source) Priority() int {
	switch s {
	case SourceColor:
		return 3
	case SourceNLP:
		return 2
	case SourceRegex:
		return 1
	}
	return 0
}

// RGB is an 8-bit-per-channel color as reported by the PDF extractor.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ColorSpan is a contiguous run of document text with a source color.
// Offsets are byte offsets [Start, End) into the owning document's text.
// Spans are immutable once produced by the upstream extractor.
type ColorSpan struct {
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Text      string `json:"text"`
	Color     RGB    `json:"color"`
	Highlight bool   `json:"highlight,omitempty"`
}

// Len returns the span length in bytes.
func (s ColorSpan) Len() int {
	return s.End - s.Start
}

// ValidOffsets reports whether the span has well-formed offsets.
func (s ColorSpan) ValidOffsets() bool {
	return s.Start >= 0 && s.End > s.Start
}

// Intersects reports whether two spans share at least one byte.
func (s ColorSpan) Intersects(o ColorSpan) bool {
	return s.Start < o.End && o.Start < s.End
}

// overlapFraction returns the shared range as a fraction of the shorter span.
// Returns 0 when the spans do not intersect or either span is empty.
func overlapFraction(a, b ColorSpan) float64 {
	lo := a.Start
	if b.Start > lo {
		lo = b.Start
	}
	hi := a.End
	if b.End < hi {
		hi = b.End
	}
	if hi <= lo {
		return 0
	}
	shorter := a.Len()
	if b.Len() < shorter {
		shorter = b.Len()
	}
	if shorter <= 0 {
		return 0
	}
	return float64(hi-lo) / float64(shorter)
}

// ClassifiedEntity is one entity candidate or merged entity: a span, the
// category it was classified as, a confidence in [0,1], and the source that
// proposed it.
type ClassifiedEntity struct {
	Span       ColorSpan `json:"span"`
	Category   Category  `json:"category"`
	Confidence float64   `json:"confidence"`
	Source     Source    `json:"source"`
}

// Key returns the exact-match deduplication key (start, end, category).
func (e ClassifiedEntity) Key() string {
	return fmt.Sprintf("%d:%d:%s", e.Span.Start, e.Span.End, e.Category)
}

// Document owns the full text and the merged, ordered entity list. Entities
// are offset views into Text, never copies that can drift from it.
type Document struct {
	ID       string
	Text     string
	Entities []ClassifiedEntity

	// Metadata carries document-level fields passed through to the vector
	// store unmodified (document_title, document_type, parties, purchase_price).
	Metadata map[string]interface{}
}

// Validate checks that every entity span lies within the document text.
func (d *Document) Validate() error {
	for i, e := range d.Entities {
		if !e.Span.ValidOffsets() {
			return fmt.Errorf("%w: entity %d has range [%d, %d)", ErrInvalidSpan, i, e.Span.Start, e.Span.End)
		}
		if e.Span.End > len(d.Text) {
			return fmt.Errorf("%w: entity %d ends at %d, text length %d", ErrSpanOutOfRange, i, e.Span.End, len(d.Text))
		}
	}
	return nil
}

// AnnotationConfidence is the document-level annotation quality signal: the
// mean confidence of the merged entities, boosted by 0.1 when at least one
// COLOR entity is present, capped at 1.0. Returns 0 for an empty list.
func AnnotationConfidence(entities []ClassifiedEntity) float64 {
	if len(entities) == 0 {
		return 0
	}
	var sum float64
	hasColor := false
	for _, e := range entities {
		sum += e.Confidence
		if e.Source == SourceColor {
			hasColor = true
		}
	}
	conf := sum / float64(len(entities))
	if hasColor {
		conf += 0.1
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
