package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/lexd/internal/chunker"
)

func writeIngestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	writeIngestFile(t, dir, "apa-1.json",
		`{"text": "The Buyer shall pay the Purchase Price at Closing."}`)
	writeIngestFile(t, dir, "spa-2.json",
		`{"text": "The Seller delivers the shares on the Closing Date."}`)
	writeIngestFile(t, dir, "broken.json", `{`)
	writeIngestFile(t, dir, "notes.txt", "not an extractor document")

	store := &fakeStore{}
	p := newTestPipeline(t, store, Config{Workers: 2}, chunker.Config{}, false)

	batch, err := p.IngestDir(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Documents)
	assert.Equal(t, 1, batch.Failures)
	assert.Equal(t, 2, batch.Chunks)
	assert.Len(t, store.stored(), 2)

	ids := make(map[string]bool)
	for _, doc := range store.stored() {
		ids[doc.Metadata["document_id"].(string)] = true
	}
	assert.True(t, ids["apa-1"])
	assert.True(t, ids["spa-2"])
}

func TestIngestDirHonorsIgnoreRules(t *testing.T) {
	dir := t.TempDir()
	writeIngestFile(t, dir, "apa-1.json",
		`{"text": "The Buyer shall pay the Purchase Price at Closing."}`)
	writeIngestFile(t, dir, "draft-spa.json",
		`{"text": "Working draft, not for ingestion."}`)
	writeIngestFile(t, dir, ".partial-upload.json", `{`)
	writeIngestFile(t, dir, ".lexdignore", "draft*\n")

	store := &fakeStore{}
	p := newTestPipeline(t, store, Config{}, chunker.Config{}, false)

	batch, err := p.IngestDir(context.Background(), dir)
	require.NoError(t, err)

	// The draft matches the inbox rule, the dotfile a default rule.
	// Neither counts as a failure.
	assert.Equal(t, 1, batch.Documents)
	assert.Equal(t, 0, batch.Failures)
	require.Len(t, store.stored(), 1)
	assert.Equal(t, "apa-1", store.stored()[0].Metadata["document_id"])
}

func TestIngestDirEmpty(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, store, Config{}, chunker.Config{}, false)

	batch, err := p.IngestDir(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Documents)
	assert.Equal(t, 0, batch.Failures)
}

func TestIngestDirMissing(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, store, Config{}, chunker.Config{}, false)

	_, err := p.IngestDir(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
