// Package annotate maps color annotations to entity categories.
package annotate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/entity"
)

// ErrInvalidConfig indicates invalid classifier configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// maxColorDistance is the largest possible Euclidean distance in normalized
// RGB space (black to white).
var maxColorDistance = math.Sqrt(3)

// Config holds configuration for the color classifier.
type Config struct {
	// Tolerance is the maximum Euclidean distance in normalized RGB space
	// ([0,1] per channel) for a color to match a palette bucket. Extracted
	// colors vary slightly with rendering and anti-aliasing, so matching is
	// by distance, never exact equality. Default: 0.15
	Tolerance float64

	// Confidence is assigned to every successful color match regardless of
	// category: it measures "a human deliberately marked this", not
	// classification certainty. Default: 0.95
	Confidence float64

	// ContextWindow is the number of bytes of surrounding document text
	// handed to the lexical cues when classifying spans in bulk.
	// Default: 60
	ContextWindow int

	// Palette is the bucket table. Defaults to DefaultPalette().
	Palette []Bucket
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Tolerance == 0 {
		c.Tolerance = 0.15
	}
	if c.Confidence == 0 {
		c.Confidence = 0.95
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = 60
	}
	if len(c.Palette) == 0 {
		c.Palette = DefaultPalette()
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Tolerance <= 0 || c.Tolerance > maxColorDistance {
		return fmt.Errorf("%w: tolerance must be in (0, %.3f], got %v", ErrInvalidConfig, maxColorDistance, c.Tolerance)
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be in (0, 1], got %v", ErrInvalidConfig, c.Confidence)
	}
	for _, b := range c.Palette {
		if b.Category == entity.CategoryNone || !b.Category.Valid() {
			return fmt.Errorf("%w: palette bucket with category %q", ErrInvalidConfig, b.Category)
		}
	}
	return nil
}

// Classifier maps an RGB value, plus optional surrounding text, to a semantic
// category and a confidence score. It is stateless: the palette, tolerance
// and confidence constant are fixed at construction.
type Classifier struct {
	config Config
	logger *zap.Logger
}

// NewClassifier creates a Classifier with the given configuration.
func NewClassifier(config Config, logger *zap.Logger) (*Classifier, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{config: config, logger: logger}, nil
}

// Classify maps a color span to a category and confidence.
//
// The span's color is matched against the palette within the configured
// tolerance. A unique match returns that bucket's category at the fixed
// confidence. When the color is within tolerance of more than one bucket,
// lexical cues in the span text and contextText disambiguate; if they
// cannot, the result is (NONE, 0). Unrecognized colors fall back to a small
// set of unambiguous lexical cues over the span text alone: surrounding text
// must not rescue a mark whose own words carry no signal.
//
// Classify is a total function over all RGB inputs: it never fails.
func (c *Classifier) Classify(span entity.ColorSpan, contextText string) (entity.Category, float64) {
	matches := c.matchBuckets(span.Color)

	switch len(matches) {
	case 1:
		return matches[0], c.config.Confidence
	case 0:
		if cat := matchCues(fallbackCategories, span.Text, ""); cat != entity.CategoryNone {
			return cat, c.config.Confidence
		}
		return entity.CategoryNone, 0
	default:
		// Ambiguous color: the cue tables of the candidate buckets decide.
		if cat := matchCues(matches, span.Text, contextText); cat != entity.CategoryNone {
			return cat, c.config.Confidence
		}
		c.logger.Debug("ambiguous color resolved to none",
			zap.Uint8("r", span.Color.R),
			zap.Uint8("g", span.Color.G),
			zap.Uint8("b", span.Color.B),
			zap.Int("bucket_matches", len(matches)),
		)
		return entity.CategoryNone, 0
	}
}

// ClassifySpans classifies every span of a document, returning one COLOR
// entity per span that maps to a category. Spans with no confident mapping
// are skipped, never an error. Context for lexical cues is a window of
// document text around each span.
func (c *Classifier) ClassifySpans(text string, spans []entity.ColorSpan) []entity.ClassifiedEntity {
	entities := make([]entity.ClassifiedEntity, 0, len(spans))
	for _, span := range spans {
		category, confidence := c.Classify(span, c.contextWindow(text, span))
		if category == entity.CategoryNone {
			continue
		}
		entities = append(entities, entity.ClassifiedEntity{
			Span:       span,
			Category:   category,
			Confidence: confidence,
			Source:     entity.SourceColor,
		})
	}
	return entities
}

// contextWindow returns document text surrounding the span, clamped to the
// document bounds.
func (c *Classifier) contextWindow(text string, span entity.ColorSpan) string {
	if !span.ValidOffsets() || span.Start >= len(text) {
		return ""
	}
	lo := span.Start - c.config.ContextWindow
	if lo < 0 {
		lo = 0
	}
	hi := span.End + c.config.ContextWindow
	if hi > len(text) {
		hi = len(text)
	}
	if lo >= hi {
		return ""
	}
	return text[lo:hi]
}

// matchBuckets returns the categories of all palette buckets within tolerance
// of the color, ordered by distance (palette order breaks ties).
func (c *Classifier) matchBuckets(color entity.RGB) []entity.Category {
	type match struct {
		category entity.Category
		distance float64
		order    int
	}
	var matches []match
	for i, b := range c.config.Palette {
		d := colorDistance(color, b.Color)
		if d <= c.config.Tolerance {
			matches = append(matches, match{category: b.Category, distance: d, order: i})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].order < matches[j].order
	})
	out := make([]entity.Category, len(matches))
	for i, m := range matches {
		out[i] = m.category
	}
	return out
}

// colorDistance is the Euclidean distance between two colors in normalized
// RGB space.
func colorDistance(a, b entity.RGB) float64 {
	dr := (float64(a.R) - float64(b.R)) / 255
	dg := (float64(a.G) - float64(b.G)) / 255
	db := (float64(a.B) - float64(b.B)) / 255
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// matchCues returns the first candidate category whose cue table matches the
// span or context text, or NONE.
func matchCues(candidates []entity.Category, spanText, contextText string) entity.Category {
	haystack := strings.ToLower(spanText + " " + contextText)
	for _, category := range candidates {
		for _, cue := range categoryCues[category] {
			if strings.Contains(haystack, cue) {
				return category
			}
		}
	}
	return entity.CategoryNone
}
