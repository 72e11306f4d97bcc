package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/lexd/internal/entity"
)

func TestParseInput(t *testing.T) {
	data := []byte(`{
		"document_id": "apa-1",
		"title": "Asset Purchase Agreement",
		"text": "The Buyer shall pay $5,000,000.",
		"spans": [
			{"start": 20, "end": 30, "text": "$5,000,000", "color": {"r": 236, "g": 236, "b": 77}}
		],
		"candidates": [
			{"start": 4, "end": 9, "text": "Buyer", "category": "PARTY", "source": "NLP", "confidence": 0.9}
		]
	}`)

	in, err := ParseInput(data)
	require.NoError(t, err)
	assert.Equal(t, "apa-1", in.DocumentID)
	assert.Equal(t, "Asset Purchase Agreement", in.Title)
	require.Len(t, in.Spans, 1)
	assert.Equal(t, entity.RGB{R: 236, G: 236, B: 77}, in.Spans[0].Color)
	require.Len(t, in.Candidates, 1)
	assert.Equal(t, "PARTY", in.Candidates[0].Category)
}

func TestParseInputErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{`},
		{"missing document_id", `{"text": "some text"}`},
		{"missing text", `{"document_id": "d1"}`},
		{"whitespace text", `{"document_id": "d1", "text": "   \n  "}`},
		{
			"span past end of text",
			`{"document_id": "d1", "text": "short", "spans": [{"start": 0, "end": 50, "text": "short"}]}`,
		},
		{
			"inverted span",
			`{"document_id": "d1", "text": "some text", "spans": [{"start": 5, "end": 2, "text": "me"}]}`,
		},
		{
			"unknown category",
			`{"document_id": "d1", "text": "some text", "candidates": [{"start": 0, "end": 4, "category": "MONEY", "source": "REGEX", "confidence": 0.5}]}`,
		},
		{
			"color source not allowed for candidates",
			`{"document_id": "d1", "text": "some text", "candidates": [{"start": 0, "end": 4, "category": "PARTY", "source": "COLOR", "confidence": 0.5}]}`,
		},
		{
			"confidence above one",
			`{"document_id": "d1", "text": "some text", "candidates": [{"start": 0, "end": 4, "category": "PARTY", "source": "NLP", "confidence": 1.5}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInput([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestReadInputDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spa-2024.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"text": "The Seller delivers the shares."}`), 0o644))

	in, err := ReadInput(path)
	require.NoError(t, err)
	assert.Equal(t, "spa-2024", in.DocumentID)
	assert.Equal(t, path, in.SourcePath)
}

func TestReadInputKeepsExplicitFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.json")
	data := `{"document_id": "my-id", "source_path": "/archive/spa.pdf", "text": "The Seller delivers the shares."}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	in, err := ReadInput(path)
	require.NoError(t, err)
	assert.Equal(t, "my-id", in.DocumentID)
	assert.Equal(t, "/archive/spa.pdf", in.SourcePath)
}

func TestReadInputMissingFile(t *testing.T) {
	_, err := ReadInput(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidInput)
}

func TestCandidateEntitiesSplitBySource(t *testing.T) {
	in := &DocumentInput{
		DocumentID: "d1",
		Text:       "The Buyer pays the Seller.",
		Candidates: []Candidate{
			{Start: 4, End: 9, Text: "Buyer", Category: "PARTY", Source: "NLP", Confidence: 0.9},
			{Start: 19, End: 25, Text: "Seller", Category: "PARTY", Source: "REGEX", Confidence: 0.6},
		},
	}
	require.NoError(t, in.Validate())

	nlp, regex := in.candidateEntities()
	require.Len(t, nlp, 1)
	require.Len(t, regex, 1)
	assert.Equal(t, entity.SourceNLP, nlp[0].Source)
	assert.Equal(t, entity.CategoryParty, nlp[0].Category)
	assert.Equal(t, "Buyer", nlp[0].Span.Text)
	assert.Equal(t, entity.SourceRegex, regex[0].Source)
}
