package integration

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/annotate"
	"github.com/fyrsmithlabs/lexd/internal/entity"
	"github.com/fyrsmithlabs/lexd/internal/ingest"
	"github.com/fyrsmithlabs/lexd/internal/retrieval"
)

const apaText = `ASSET PURCHASE AGREEMENT

This Asset Purchase Agreement is entered into as of March 1, 2024 by and
between Hawthorne Dynamics, Inc. (the "Buyer") and Meridian Fabrication LLC
(the "Seller").

The aggregate purchase price for the Purchased Assets shall be $5,000,000,
payable at the Closing by wire transfer of immediately available funds.
Pursuant to Section 2.3, the Seller shall deliver the Purchased Assets to
the Buyer at the Closing on April 15, 2024.`

const spaText = `STOCK PURCHASE AGREEMENT

This Stock Purchase Agreement is dated December 12, 2023 between Caldwell
Holdings Corp. (the "Purchaser") and Birchwood Systems, Inc. (the "Company").

At the Closing the Purchaser shall deliver to the Company $12,500,000, of
which $1,250,000 shall be deposited into escrow for a period of eighteen
months. The escrow deposit equals ten percent (10%) of the aggregate
consideration.`

const msaText = `MASTER SERVICES AGREEMENT

This Master Services Agreement is made between Stonebridge Consulting LLC
(the "Provider") and Redwood Analytics, Inc. (the "Client"). The parties
agree that services shall be performed with reasonable skill and care.

Either party may terminate this Agreement upon sixty days written notice.`

// paletteColor returns the canonical annotation color for a category.
func paletteColor(t *testing.T, cat entity.Category) entity.RGB {
	t.Helper()
	for _, b := range annotate.DefaultPalette() {
		if b.Category == cat {
			return b.Color
		}
	}
	t.Fatalf("no palette color for category %s", cat)
	return entity.RGB{}
}

// testDocuments builds the three annotated agreements the retrieval tests
// run against: two with highlighted amounts, one party-only services
// agreement that financial filters must exclude.
func testDocuments(t *testing.T) []*ingest.DocumentInput {
	t.Helper()

	yellow := paletteColor(t, entity.CategoryAmount)
	green := paletteColor(t, entity.CategoryPercent)
	gray := paletteColor(t, entity.CategoryDate)
	lightGreen := paletteColor(t, entity.CategoryDuration)
	brown := paletteColor(t, entity.CategoryCrossRef)
	blue := paletteColor(t, entity.CategoryParty)

	return []*ingest.DocumentInput{
		{
			DocumentID: "apa-2024",
			Text:       apaText,
			Spans: []entity.ColorSpan{
				spanFor(t, apaText, "March 1, 2024", gray),
				spanFor(t, apaText, "Hawthorne Dynamics, Inc.", blue),
				spanFor(t, apaText, "Meridian Fabrication LLC", blue),
				spanFor(t, apaText, "$5,000,000", yellow),
				spanFor(t, apaText, "Section 2.3", brown),
				spanFor(t, apaText, "April 15, 2024", gray),
			},
		},
		{
			DocumentID: "spa-2023",
			Text:       spaText,
			Spans: []entity.ColorSpan{
				spanFor(t, spaText, "December 12, 2023", gray),
				spanFor(t, spaText, "Caldwell Holdings Corp.", blue),
				spanFor(t, spaText, "Birchwood Systems, Inc.", blue),
				spanFor(t, spaText, "$12,500,000", yellow),
				spanFor(t, spaText, "$1,250,000", yellow),
				spanFor(t, spaText, "10%", green),
			},
		},
		{
			DocumentID: "services-msa",
			Text:       msaText,
			Spans: []entity.ColorSpan{
				spanFor(t, msaText, "Stonebridge Consulting LLC", blue),
				spanFor(t, msaText, "Redwood Analytics, Inc.", blue),
				spanFor(t, msaText, "sixty days", lightGreen),
			},
		},
	}
}

// TestE2E_IngestAndRetrieve runs the full path: annotated extractor output
// through classification, merging, chunking and storage, then intent-routed
// retrieval over the stored chunks.
func TestE2E_IngestAndRetrieve(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()
	logger := zap.NewNop()

	store, cleanup := createTestStore(t)
	defer cleanup()
	pipeline := createTestPipeline(t, store)

	// Phase 1: ingest the annotated agreements.
	for _, in := range testDocuments(t) {
		stats, err := pipeline.Ingest(ctx, in)
		require.NoError(t, err, "Should ingest %s", in.DocumentID)
		assert.Equal(t, in.DocumentID, stats.DocumentID)
		assert.Equal(t, 1, stats.Chunks, "Short documents should produce one chunk")
		assert.Equal(t, len(in.Spans), stats.BySource[entity.SourceColor],
			"Every span should survive as a color entity for %s", in.DocumentID)
	}

	controller, err := retrieval.NewController(store, nil, retrieval.Config{}, logger)
	require.NoError(t, err)
	engine, err := retrieval.NewEngine(controller, nil, logger)
	require.NoError(t, err)

	// Phase 2: a financial question targets amount-annotated chunks only.
	ans, err := engine.Query(ctx, "What is the purchase price?")
	require.NoError(t, err)
	assert.Equal(t, "financial", ans.Intent)
	assert.Equal(t, 1, ans.Iterations, "No analyzer means a single pass")
	assert.False(t, ans.Partial)
	assert.Empty(t, ans.Answer, "No synthesizer means sources only")

	ids := sourceDocuments(ans.Sources)
	assert.ElementsMatch(t, []string{"apa-2024", "spa-2023"}, ids,
		"Only amount-annotated documents should pass the financial filter")
	assertSourceInvariants(t, ans.Sources)

	for _, src := range ans.Sources {
		if src.DocumentID == "apa-2024" {
			assert.Equal(t, "ASSET PURCHASE AGREEMENT", src.Title)
			assert.Contains(t, src.Snippet, "ASSET PURCHASE")
		}
	}

	// Phase 3: a party question reaches every party-annotated document,
	// including the services agreement the financial filter excluded.
	ans, err = engine.Query(ctx, "Who are the parties to the agreement?")
	require.NoError(t, err)
	assert.Equal(t, "party", ans.Intent)
	assert.ElementsMatch(t, []string{"apa-2024", "spa-2023", "services-msa"},
		sourceDocuments(ans.Sources))
	assertSourceInvariants(t, ans.Sources)

	// Phase 4: a general question searches unfiltered.
	ans, err = engine.Query(ctx, "Describe the delivery obligations under these agreements")
	require.NoError(t, err)
	assert.Equal(t, "general", ans.Intent)
	assert.ElementsMatch(t, []string{"apa-2024", "spa-2023", "services-msa"},
		sourceDocuments(ans.Sources))
	assertSourceInvariants(t, ans.Sources)
}

// TestE2E_QueryBeforeIngestDegrades verifies a query against a store with no
// collection yet still answers gracefully instead of failing.
func TestE2E_QueryBeforeIngestDegrades(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()
	logger := zap.NewNop()

	store, cleanup := createTestStore(t)
	defer cleanup()

	controller, err := retrieval.NewController(store, nil, retrieval.Config{}, logger)
	require.NoError(t, err)
	engine, err := retrieval.NewEngine(controller, nil, logger)
	require.NoError(t, err)

	ans, err := engine.Query(ctx, "What is the purchase price?")
	require.NoError(t, err, "Store failures should degrade, not error")
	assert.True(t, ans.Partial)
	assert.Empty(t, ans.Sources)
	assert.Equal(t, "No documents matched the query.", ans.Answer)
}

// TestE2E_ReingestIsIdempotent verifies re-ingesting a document overwrites
// its chunks instead of duplicating them.
func TestE2E_ReingestIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()

	store, cleanup := createTestStore(t)
	defer cleanup()
	pipeline := createTestPipeline(t, store)

	doc := testDocuments(t)[0]
	_, err := pipeline.Ingest(ctx, doc)
	require.NoError(t, err)

	info, err := store.GetCollectionInfo(ctx, "lexd_chunks")
	require.NoError(t, err)
	before := info.PointCount

	_, err = pipeline.Ingest(ctx, doc)
	require.NoError(t, err)

	info, err = store.GetCollectionInfo(ctx, "lexd_chunks")
	require.NoError(t, err)
	assert.Equal(t, before, info.PointCount, "Re-ingestion should not add chunks")
}

// sourceDocuments returns the distinct document IDs in source order.
func sourceDocuments(sources []retrieval.SourceRef) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, src := range sources {
		if !seen[src.DocumentID] {
			seen[src.DocumentID] = true
			ids = append(ids, src.DocumentID)
		}
	}
	return ids
}

// assertSourceInvariants checks the ordering and dedup guarantees every
// answer's source list carries: relevance-sorted, no chunk twice.
func assertSourceInvariants(t *testing.T, sources []retrieval.SourceRef) {
	t.Helper()

	seen := make(map[string]bool)
	for i, src := range sources {
		if i > 0 {
			assert.GreaterOrEqual(t, sources[i-1].Relevance, src.Relevance,
				"Sources should be sorted by relevance, descending")
		}
		key := src.DocumentID + ":" + strconv.Itoa(src.StartOffset)
		assert.False(t, seen[key], "Chunk %s offset %d appears twice", src.DocumentID, src.StartOffset)
		seen[key] = true
	}
}
