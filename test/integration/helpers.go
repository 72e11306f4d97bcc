// Package integration holds end-to-end tests that run the real ingest
// pipeline and retrieval loop against an embedded vector store.
package integration

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/annotate"
	"github.com/fyrsmithlabs/lexd/internal/chunker"
	"github.com/fyrsmithlabs/lexd/internal/entity"
	"github.com/fyrsmithlabs/lexd/internal/extract"
	"github.com/fyrsmithlabs/lexd/internal/ingest"
	"github.com/fyrsmithlabs/lexd/internal/vectorstore"
)

const testVectorSize = 64

// hashEmbedder is a deterministic bag-of-words embedder: token counts are
// hashed into a fixed number of buckets and L2-normalized, so texts that
// share vocabulary score high cosine similarity without a model download.
type hashEmbedder struct{}

func (hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = embedText(text)
	}
	return out, nil
}

func (hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embedText(text), nil
}

func (hashEmbedder) Dimension() int { return testVectorSize }

func (hashEmbedder) Close() error { return nil }

func embedText(text string) []float32 {
	vec := make([]float32, testVectorSize)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%testVectorSize]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// createTestStore creates an embedded chromem store in a temp directory
// and returns a cleanup function.
func createTestStore(t *testing.T) (vectorstore.Store, func()) {
	t.Helper()

	config := vectorstore.ChromemConfig{
		Path:              t.TempDir(),
		DefaultCollection: "lexd_chunks",
		VectorSize:        testVectorSize,
	}

	store, err := vectorstore.NewChromemStore(config, hashEmbedder{}, zap.NewNop())
	require.NoError(t, err, "Should create test vector store")

	cleanup := func() {
		if store != nil {
			store.Close()
		}
	}

	return store, cleanup
}

// createTestPipeline wires the full ingest pipeline over the store with
// default component configuration.
func createTestPipeline(t *testing.T, store vectorstore.Store) *ingest.Pipeline {
	t.Helper()
	logger := zap.NewNop()

	classifier, err := annotate.NewClassifier(annotate.Config{}, logger)
	require.NoError(t, err, "Should create classifier")

	merger, err := entity.NewMerger(entity.MergerConfig{}, logger)
	require.NoError(t, err, "Should create merger")

	chunkr, err := chunker.NewChunker(chunker.Config{}, logger)
	require.NoError(t, err, "Should create chunker")

	regex, err := extract.NewRegexExtractor(extract.DefaultPatterns(), logger)
	require.NoError(t, err, "Should create regex extractor")

	pipeline, err := ingest.NewPipeline(ingest.Components{
		Classifier: classifier,
		Merger:     merger,
		Chunker:    chunkr,
		Regex:      regex,
		Store:      store,
	}, ingest.Config{}, logger)
	require.NoError(t, err, "Should create pipeline")

	return pipeline
}

// spanFor locates the first occurrence of text in doc and returns a color
// span over it. Offsets computed here always line up with the document.
func spanFor(t *testing.T, doc, text string, color entity.RGB) entity.ColorSpan {
	t.Helper()

	start := strings.Index(doc, text)
	require.GreaterOrEqual(t, start, 0, "span text %q not found in document", text)

	return entity.ColorSpan{
		Start: start,
		End:   start + len(text),
		Text:  text,
		Color: color,
	}
}
