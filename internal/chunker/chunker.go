// Package chunker splits annotated documents into overlapping chunks and
// builds the per-chunk retrieval metadata. Unlike generic text splitters it
// preserves byte offsets into the source document, so entities found before
// chunking can be re-attached to every chunk they intersect.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/entity"
)

var (
	// ErrInvalidConfig indicates an invalid chunker configuration.
	ErrInvalidConfig = errors.New("invalid chunker configuration")

	// ErrChunkBoundary indicates the splitter could not advance past an
	// offset. Reachable only with degenerate size/overlap settings.
	ErrChunkBoundary = errors.New("chunk boundary makes no progress")
)

// DefaultSeparators returns the boundary candidates in priority order.
// Article and section headings outrank paragraphs, paragraphs outrank lines,
// lines outrank sentences, and a single space is the last resort.
func DefaultSeparators() []string {
	return []string{"\n\nARTICLE ", "\n\nSECTION ", "\n\nSection ", "\n\n", "\n", ". ", " "}
}

// Weights control the chunk relevance score. Each component is added when
// its signal is present; the sum is capped at 1.0.
type Weights struct {
	AnnotationConfidence float64 `koanf:"annotation_confidence"`
	ColorPresence        float64 `koanf:"color_presence"`
	ColorAmounts         float64 `koanf:"color_amounts"`
	FinancialKeywords    float64 `koanf:"financial_keywords"`
	PartyKeywords        float64 `koanf:"party_keywords"`
}

// Config holds chunker settings.
type Config struct {
	// ChunkSize is the maximum chunk length in bytes.
	ChunkSize int `koanf:"chunk_size"`
	// Overlap is how many bytes of the previous chunk each chunk repeats.
	Overlap int `koanf:"overlap"`
	// Separators are tried in order when looking for a split point.
	Separators []string `koanf:"separators"`
	// HighQualityThreshold marks chunks whose relevance score exceeds
	// it as high quality.
	HighQualityThreshold float64 `koanf:"high_quality_threshold"`

	Weights Weights `koanf:"weights"`
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 4000
	}
	if c.Overlap == 0 {
		c.Overlap = 800
	}
	if len(c.Separators) == 0 {
		c.Separators = DefaultSeparators()
	}
	if c.HighQualityThreshold == 0 {
		c.HighQualityThreshold = 0.8
	}
	if c.Weights == (Weights{}) {
		c.Weights = Weights{
			AnnotationConfidence: 0.3,
			ColorPresence:        0.25,
			ColorAmounts:         0.2,
			FinancialKeywords:    0.15,
			PartyKeywords:        0.1,
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap must be in [0, chunk_size), got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.HighQualityThreshold < 0 || c.HighQualityThreshold > 1 {
		return fmt.Errorf("%w: high_quality_threshold must be in [0,1], got %v", ErrInvalidConfig, c.HighQualityThreshold)
	}
	for name, w := range map[string]float64{
		"annotation_confidence": c.Weights.AnnotationConfidence,
		"color_presence":        c.Weights.ColorPresence,
		"color_amounts":         c.Weights.ColorAmounts,
		"financial_keywords":    c.Weights.FinancialKeywords,
		"party_keywords":        c.Weights.PartyKeywords,
	} {
		if w < 0 {
			return fmt.Errorf("%w: weight %s must not be negative, got %v", ErrInvalidConfig, name, w)
		}
	}
	return nil
}

// Chunk is a contiguous slice of a document. Start and End are byte offsets
// into the document text; Entities keep their document-absolute offsets.
type Chunk struct {
	Index    int
	Start    int
	End      int
	Text     string
	Entities []entity.ClassifiedEntity
	Metadata map[string]interface{}
}

// Chunker splits documents.
type Chunker struct {
	config Config
	logger *zap.Logger
}

// NewChunker creates a chunker with the given configuration.
func NewChunker(config Config, logger *zap.Logger) (*Chunker, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{config: config, logger: logger}, nil
}

// Chunk splits the document text and attaches each entity to every chunk its
// span intersects. An entity straddling a boundary appears in both chunks.
func (c *Chunker) Chunk(doc entity.Document) ([]Chunk, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	spans, err := c.split(doc.Text)
	if err != nil {
		return nil, fmt.Errorf("chunking document %s: %w", doc.ID, err)
	}

	chunks := make([]Chunk, 0, len(spans))
	for i, s := range spans {
		ch := Chunk{
			Index: i,
			Start: s.start,
			End:   s.end,
			Text:  doc.Text[s.start:s.end],
		}
		for _, e := range doc.Entities {
			if e.Span.Start < s.end && e.Span.End > s.start {
				ch.Entities = append(ch.Entities, e)
			}
		}
		ch.Metadata = c.buildMetadata(doc, &ch)
		chunks = append(chunks, ch)
	}

	c.logger.Debug("document chunked",
		zap.String("document_id", doc.ID),
		zap.Int("chunks", len(chunks)),
		zap.Int("entities", len(doc.Entities)))
	return chunks, nil
}

type span struct {
	start, end int
}

// split produces the chunk spans. Each chunk after the first starts exactly
// Overlap bytes before the previous chunk's end. Split points land on word
// boundaries; the overlap rewind may start mid-word, which retrieval
// tolerates, but never mid-rune.
func (c *Chunker) split(text string) ([]span, error) {
	if len(text) == 0 {
		return nil, nil
	}
	if len(text) <= c.config.ChunkSize {
		return []span{{0, len(text)}}, nil
	}

	var spans []span
	pos := 0
	for len(text)-pos > c.config.ChunkSize {
		end := c.boundary(text, pos)
		if end <= pos || end-c.config.Overlap <= pos {
			return nil, fmt.Errorf("%w: offset %d", ErrChunkBoundary, pos)
		}
		spans = append(spans, span{pos, end})

		next := end - c.config.Overlap
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		pos = next
	}
	return append(spans, span{pos, len(text)}), nil
}

// boundary picks where the chunk starting at pos ends. Separators are tried
// in priority order; the last occurrence inside the window wins so chunks
// run as close to ChunkSize as the text allows. The chunk ends right before
// the separator, which puts headings like "ARTICLE 5" at the front of the
// next chunk. A boundary inside the overlap region is rejected because the
// next chunk would not advance past pos.
func (c *Chunker) boundary(text string, pos int) int {
	window := text[pos : pos+c.config.ChunkSize]
	for _, sep := range c.config.Separators {
		if idx := strings.LastIndex(window, sep); idx > c.config.Overlap {
			return pos + idx
		}
	}
	return c.hardCut(text, pos)
}

// hardCut splits at the window edge when no separator qualifies, backing up
// to the nearest whitespace so words stay whole. Text with no whitespace at
// all (base64 exhibits, minified content) cuts at the edge on a rune
// boundary.
func (c *Chunker) hardCut(text string, pos int) int {
	end := pos + c.config.ChunkSize
	for b := end; b > pos+c.config.Overlap+1; b-- {
		switch text[b-1] {
		case ' ', '\t', '\n', '\r':
			return b
		}
	}
	for end > pos && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}
