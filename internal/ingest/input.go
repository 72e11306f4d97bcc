package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/lexd/internal/entity"
)

// ErrInvalidInput indicates a malformed extractor document.
var ErrInvalidInput = errors.New("invalid ingest input")

// Candidate is one pre-extracted entity candidate supplied by the upstream
// extractor alongside the color spans. Source is NLP or REGEX; color
// entities only ever come from spans.
type Candidate struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// DocumentInput is the wire form of one extracted document: the full text,
// the color-annotated spans, and any entity candidates the extractor already
// produced. The extractor writes one JSON file per document.
type DocumentInput struct {
	DocumentID   string             `json:"document_id"`
	SourcePath   string             `json:"source_path,omitempty"`
	Title        string             `json:"title,omitempty"`
	DocumentType string             `json:"document_type,omitempty"`
	Text         string             `json:"text"`
	Spans        []entity.ColorSpan `json:"spans,omitempty"`
	Candidates   []Candidate        `json:"candidates,omitempty"`
}

// ParseInput decodes and validates one extractor document.
func ParseInput(data []byte) (*DocumentInput, error) {
	var in DocumentInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

// ReadInput loads one extractor document from disk. A missing document_id
// defaults to the file name without its extension; a missing source_path
// defaults to the file path.
func ReadInput(path string) (*DocumentInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var in DocumentInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}
	if in.DocumentID == "" {
		base := filepath.Base(path)
		in.DocumentID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if in.SourcePath == "" {
		in.SourcePath = path
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

// Validate checks the document for the defects that would corrupt offsets
// downstream: missing id or text, spans or candidates outside the text,
// unknown candidate categories or sources.
func (in *DocumentInput) Validate() error {
	if in.DocumentID == "" {
		return fmt.Errorf("%w: document_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("%w: document %s has no text", ErrInvalidInput, in.DocumentID)
	}
	for i, s := range in.Spans {
		if !s.ValidOffsets() || s.End > len(in.Text) {
			return fmt.Errorf("%w: document %s span %d has range [%d, %d), text length %d",
				ErrInvalidInput, in.DocumentID, i, s.Start, s.End, len(in.Text))
		}
	}
	for i, c := range in.Candidates {
		if c.Start < 0 || c.End <= c.Start || c.End > len(in.Text) {
			return fmt.Errorf("%w: document %s candidate %d has range [%d, %d), text length %d",
				ErrInvalidInput, in.DocumentID, i, c.Start, c.End, len(in.Text))
		}
		cat := entity.Category(c.Category)
		if !cat.Valid() || cat == entity.CategoryNone {
			return fmt.Errorf("%w: document %s candidate %d has unknown category %q",
				ErrInvalidInput, in.DocumentID, i, c.Category)
		}
		switch entity.Source(c.Source) {
		case entity.SourceNLP, entity.SourceRegex:
		default:
			return fmt.Errorf("%w: document %s candidate %d has unknown source %q",
				ErrInvalidInput, in.DocumentID, i, c.Source)
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			return fmt.Errorf("%w: document %s candidate %d confidence %v outside [0, 1]",
				ErrInvalidInput, in.DocumentID, i, c.Confidence)
		}
	}
	return nil
}

// candidateEntities splits the supplied candidates by extractor source.
func (in *DocumentInput) candidateEntities() (nlp, regex []entity.ClassifiedEntity) {
	for _, c := range in.Candidates {
		e := entity.ClassifiedEntity{
			Span:       entity.ColorSpan{Start: c.Start, End: c.End, Text: c.Text},
			Category:   entity.Category(c.Category),
			Confidence: c.Confidence,
			Source:     entity.Source(c.Source),
		}
		switch e.Source {
		case entity.SourceNLP:
			nlp = append(nlp, e)
		case entity.SourceRegex:
			regex = append(regex, e)
		}
	}
	return nlp, regex
}
