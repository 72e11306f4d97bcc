package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/generation"
	"github.com/fyrsmithlabs/lexd/internal/vectorstore"
)

// MockSearcher is a mock vector store for controller tests.
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorstore.SearchResult), args.Error(1)
}

func (m *MockSearcher) SearchWithFilters(ctx context.Context, query string, k int, filters map[string]interface{}) ([]vectorstore.SearchResult, error) {
	args := m.Called(ctx, query, k, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorstore.SearchResult), args.Error(1)
}

// MockAnalyzer is a mock gap analyzer for controller tests.
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) AnalyzeGaps(ctx context.Context, query string, sources []generation.Source) (bool, []string, error) {
	args := m.Called(ctx, query, sources)
	var followUps []string
	if v := args.Get(1); v != nil {
		followUps = v.([]string)
	}
	return args.Bool(0), followUps, args.Error(2)
}

// chunkResult builds a search result the way the ingest pipeline stores
// chunks, with typed metadata as the qdrant backend returns it.
func chunkResult(docID string, start int, relevance float64, content string) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		ID:      fmt.Sprintf("%s_chunk_%d", docID, start),
		Content: content,
		Score:   0.8,
		Metadata: map[string]interface{}{
			"document_id":           docID,
			"document_title":        "Asset Purchase Agreement",
			"document_type":         "purchase_agreement",
			"chunk_index":           0,
			"start_offset":          start,
			"relevance_score":       relevance,
			"annotation_confidence": 0.9,
			"color_entity_count":    2,
			"high_quality_chunk":    relevance > 0.8,
		},
	}
}

func newTestController(t *testing.T, store Searcher, analyzer Analyzer) *Controller {
	t.Helper()
	c, err := NewController(store, analyzer, Config{}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewController(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		_, err := NewController(nil, nil, Config{}, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("complex budget below simple", func(t *testing.T) {
		cfg := Config{MaxIterationsSimple: 4, MaxIterationsComplex: 2}
		_, err := NewController(new(MockSearcher), nil, cfg, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("defaults applied", func(t *testing.T) {
		c, err := NewController(new(MockSearcher), nil, Config{}, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, c.config.MaxIterationsSimple)
		assert.Equal(t, 5, c.config.MaxIterationsComplex)
		assert.Equal(t, 20, c.config.FilteredFirstK)
		assert.Equal(t, 25, c.config.BaseK)
	})
}

func TestControllerEmptyQuery(t *testing.T) {
	c := newTestController(t, new(MockSearcher), nil)
	_, err := c.Run(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

// A financial query's first pass is filtered to amount-annotated chunks
// with the smaller filtered k.
func TestControllerFinancialQueryFiltersFirstPass(t *testing.T) {
	store := new(MockSearcher)
	analyzer := new(MockAnalyzer)
	query := "What is the purchase price?"

	store.On("SearchWithFilters", mock.Anything, query, 20,
		map[string]interface{}{"has_color_amounts": true}).
		Return([]vectorstore.SearchResult{
			chunkResult("apa-1", 0, 0.9, "The purchase price is $5,000,000."),
		}, nil).Once()
	analyzer.On("AnalyzeGaps", mock.Anything, query, mock.Anything).
		Return(true, nil, nil).Once()

	c := newTestController(t, store, analyzer)
	res, err := c.Run(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, IntentFinancial, res.Intent)
	assert.True(t, res.Complex)
	assert.False(t, res.Partial)
	assert.False(t, res.Insufficient)
	require.Len(t, res.Contexts, 1)
	assert.Equal(t, "apa-1", res.Contexts[0].DocumentID)

	store.AssertExpectations(t)
	analyzer.AssertExpectations(t)
}

// Follow-up queries re-derive their own filter; a date-flavored follow-up
// searches date-annotated chunks at the grown k. The analyzer always sees
// the original question, not the follow-up.
func TestControllerFollowUpRederivesFilter(t *testing.T) {
	store := new(MockSearcher)
	analyzer := new(MockAnalyzer)
	query := "What is the purchase price?"
	followUp := "closing date for the acquisition"

	store.On("SearchWithFilters", mock.Anything, query, 20,
		map[string]interface{}{"has_color_amounts": true}).
		Return([]vectorstore.SearchResult{
			chunkResult("apa-1", 0, 0.9, "The purchase price is $5,000,000."),
		}, nil).Once()
	store.On("SearchWithFilters", mock.Anything, followUp, 30,
		map[string]interface{}{"has_color_dates": true}).
		Return([]vectorstore.SearchResult{
			chunkResult("apa-1", 4200, 0.7, "Closing shall occur on March 1, 2025."),
		}, nil).Once()
	analyzer.On("AnalyzeGaps", mock.Anything, query, mock.Anything).
		Return(false, []string{followUp}, nil).Once()
	analyzer.On("AnalyzeGaps", mock.Anything, query, mock.Anything).
		Return(true, nil, nil).Once()

	c := newTestController(t, store, analyzer)
	res, err := c.Run(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Iterations)
	assert.Len(t, res.Contexts, 2)
	assert.False(t, res.Insufficient)

	store.AssertExpectations(t)
	analyzer.AssertExpectations(t)
}

// A chunk returned by two iterations lands in the context set once, even
// when the second backend stringified its metadata.
func TestControllerDeduplicatesAcrossIterations(t *testing.T) {
	store := new(MockSearcher)
	analyzer := new(MockAnalyzer)
	query := "governing law provisions of the agreement"
	followUp := "indemnification carve outs"

	dup := chunkResult("doc-7", 120, 0.9, "Delaware law governs.")
	dup.Metadata["start_offset"] = "120"

	store.On("Search", mock.Anything, query, 25).
		Return([]vectorstore.SearchResult{
			chunkResult("doc-7", 120, 0.9, "Delaware law governs."),
			chunkResult("doc-2", 0, 0.7, "Recitals."),
		}, nil).Once()
	store.On("Search", mock.Anything, followUp, 30).
		Return([]vectorstore.SearchResult{
			dup,
			chunkResult("doc-3", 40, 0.6, "Indemnification cap."),
		}, nil).Once()
	analyzer.On("AnalyzeGaps", mock.Anything, query, mock.Anything).
		Return(false, []string{followUp}, nil).Once()
	analyzer.On("AnalyzeGaps", mock.Anything, query, mock.Anything).
		Return(true, nil, nil).Once()

	c := newTestController(t, store, analyzer)
	res, err := c.Run(context.Background(), query)
	require.NoError(t, err)

	require.Len(t, res.Contexts, 3)
	seen := map[string]int{}
	for _, cc := range res.Contexts {
		seen[cc.DocumentID+":"+fmt.Sprint(cc.StartOffset)]++
	}
	assert.Equal(t, 1, seen["doc-7:120"])

	store.AssertExpectations(t)
	analyzer.AssertExpectations(t)
}

// An analyzer that never reports sufficiency cannot loop forever: a simple
// query stops after its three iterations, and the final iteration skips
// analysis because no follow-up budget remains.
func TestControllerStopsAtIterationBudget(t *testing.T) {
	store := new(MockSearcher)
	analyzer := new(MockAnalyzer)
	query := "indemnification procedures"

	store.On("Search", mock.Anything, query, 25).
		Return([]vectorstore.SearchResult{chunkResult("d1", 0, 0.5, "one")}, nil).Once()
	store.On("Search", mock.Anything, "follow-up query", 30).
		Return([]vectorstore.SearchResult{chunkResult("d2", 0, 0.5, "two")}, nil).Once()
	store.On("Search", mock.Anything, "follow-up query", 35).
		Return([]vectorstore.SearchResult{chunkResult("d3", 0, 0.5, "three")}, nil).Once()
	analyzer.On("AnalyzeGaps", mock.Anything, query, mock.Anything).
		Return(false, []string{"follow-up query"}, nil)

	c := newTestController(t, store, analyzer)
	res, err := c.Run(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Iterations)
	assert.True(t, res.Insufficient)
	assert.False(t, res.Partial)
	assert.Len(t, res.Contexts, 3)
	analyzer.AssertNumberOfCalls(t, "AnalyzeGaps", 2)

	store.AssertExpectations(t)
}

// Follow-ups beyond the remaining iteration budget are dropped; queued
// follow-ups survive a round that produced none.
func TestControllerCapsFollowUpQueue(t *testing.T) {
	store := new(MockSearcher)
	analyzer := new(MockAnalyzer)
	query := "indemnification procedures"

	store.On("Search", mock.Anything, query, 25).
		Return([]vectorstore.SearchResult{chunkResult("d1", 0, 0.5, "one")}, nil).Once()
	store.On("Search", mock.Anything, "q1", 30).
		Return([]vectorstore.SearchResult{chunkResult("d2", 0, 0.5, "two")}, nil).Once()
	store.On("Search", mock.Anything, "q2", 35).
		Return([]vectorstore.SearchResult{chunkResult("d3", 0, 0.5, "three")}, nil).Once()
	analyzer.On("AnalyzeGaps", mock.Anything, query, mock.Anything).
		Return(false, []string{"q1", "q2", "q3"}, nil).Once()
	analyzer.On("AnalyzeGaps", mock.Anything, query, mock.Anything).
		Return(false, nil, nil).Once()

	c := newTestController(t, store, analyzer)
	res, err := c.Run(context.Background(), query)
	require.NoError(t, err)

	// q3 exceeded the remaining budget and was never searched.
	assert.Equal(t, 3, res.Iterations)
	store.AssertExpectations(t)
	analyzer.AssertExpectations(t)
}

func TestControllerStoreFailureReturnsPartial(t *testing.T) {
	t.Run("mid-run keeps accumulated context", func(t *testing.T) {
		store := new(MockSearcher)
		analyzer := new(MockAnalyzer)
		query := "indemnification procedures"

		store.On("Search", mock.Anything, query, 25).
			Return([]vectorstore.SearchResult{chunkResult("d1", 0, 0.5, "one")}, nil).Once()
		store.On("Search", mock.Anything, "next angle", 30).
			Return(nil, errors.New("qdrant: connection refused")).Once()
		analyzer.On("AnalyzeGaps", mock.Anything, query, mock.Anything).
			Return(false, []string{"next angle"}, nil).Once()

		c := newTestController(t, store, analyzer)
		res, err := c.Run(context.Background(), query)
		require.NoError(t, err)

		assert.True(t, res.Partial)
		assert.Equal(t, 2, res.Iterations)
		assert.Len(t, res.Contexts, 1)
	})

	t.Run("first pass yields empty partial result", func(t *testing.T) {
		store := new(MockSearcher)
		analyzer := new(MockAnalyzer)

		store.On("Search", mock.Anything, mock.Anything, 25).
			Return(nil, errors.New("qdrant: connection refused")).Once()

		c := newTestController(t, store, analyzer)
		res, err := c.Run(context.Background(), "indemnification procedures")
		require.NoError(t, err)

		assert.True(t, res.Partial)
		assert.Empty(t, res.Contexts)
		analyzer.AssertNumberOfCalls(t, "AnalyzeGaps", 0)
	})
}

func TestControllerAnalyzerFailureReturnsPartial(t *testing.T) {
	store := new(MockSearcher)
	analyzer := new(MockAnalyzer)
	query := "indemnification procedures"

	store.On("Search", mock.Anything, query, 25).
		Return([]vectorstore.SearchResult{chunkResult("d1", 0, 0.5, "one")}, nil).Once()
	analyzer.On("AnalyzeGaps", mock.Anything, query, mock.Anything).
		Return(false, nil, errors.New("llm timeout")).Once()

	c := newTestController(t, store, analyzer)
	res, err := c.Run(context.Background(), query)
	require.NoError(t, err)

	assert.True(t, res.Partial)
	assert.False(t, res.Insufficient)
	assert.Equal(t, 1, res.Iterations)
	assert.Len(t, res.Contexts, 1)
}

func TestControllerEmptyResultsStop(t *testing.T) {
	store := new(MockSearcher)
	analyzer := new(MockAnalyzer)

	store.On("Search", mock.Anything, mock.Anything, 25).
		Return([]vectorstore.SearchResult{}, nil).Once()

	c := newTestController(t, store, analyzer)
	res, err := c.Run(context.Background(), "indemnification procedures")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Contexts)
	assert.False(t, res.Partial)
	analyzer.AssertNumberOfCalls(t, "AnalyzeGaps", 0)
}

// Without an analyzer the controller degrades to a single search pass.
func TestControllerWithoutAnalyzer(t *testing.T) {
	store := new(MockSearcher)

	store.On("Search", mock.Anything, mock.Anything, 25).
		Return([]vectorstore.SearchResult{chunkResult("d1", 0, 0.5, "one")}, nil).Once()

	c := newTestController(t, store, nil)
	res, err := c.Run(context.Background(), "indemnification procedures")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Iterations)
	assert.Len(t, res.Contexts, 1)
	assert.False(t, res.Partial)
	store.AssertExpectations(t)
}

func TestControllerContextCapOrdersByRelevance(t *testing.T) {
	store := new(MockSearcher)
	analyzer := new(MockAnalyzer)

	store.On("Search", mock.Anything, mock.Anything, 25).
		Return([]vectorstore.SearchResult{
			chunkResult("low", 0, 0.2, "boilerplate"),
			chunkResult("high", 0, 0.95, "purchase price clause"),
			chunkResult("mid", 0, 0.6, "definitions"),
		}, nil).Once()
	analyzer.On("AnalyzeGaps", mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil, nil).Once()

	cfg := Config{ContextCapSimple: 2, ContextCapComplex: 2}
	c, err := NewController(store, analyzer, cfg, zap.NewNop())
	require.NoError(t, err)

	res, err := c.Run(context.Background(), "indemnification procedures")
	require.NoError(t, err)

	require.Len(t, res.Contexts, 2)
	assert.Equal(t, "high", res.Contexts[0].DocumentID)
	assert.Equal(t, "mid", res.Contexts[1].DocumentID)
}

func TestFinalize(t *testing.T) {
	contexts := []ContextChunk{
		{DocumentID: "a", Relevance: 0.5, Score: 0.9},
		{DocumentID: "b", Relevance: 0.9, Score: 0.1},
		{DocumentID: "c", Relevance: 0.5, Score: 0.95},
		{DocumentID: "e", Relevance: 0.5, Score: 0.9},
		{DocumentID: "d", Relevance: 0.2, Score: 0.3},
	}

	sorted := finalize(contexts, 4)
	ids := make([]string, len(sorted))
	for i, cc := range sorted {
		ids[i] = cc.DocumentID
	}
	// Relevance first, similarity breaks ties, equal chunks keep arrival
	// order, and the cap trims the tail.
	assert.Equal(t, []string{"b", "c", "a", "e"}, ids)

	// The input order is untouched.
	assert.Equal(t, "a", contexts[0].DocumentID)
}

func TestSources(t *testing.T) {
	contexts := []ContextChunk{
		{
			Title:        "Asset Purchase Agreement",
			DocumentType: "purchase_agreement",
			Content:      "The purchase price is $5,000,000.",
			Relevance:    0.95,
			Confidence:   0.88,
			EntityCount:  3,
		},
	}

	sources := Sources(contexts)
	require.Len(t, sources, 1)
	assert.Equal(t, generation.Source{
		Title:        "Asset Purchase Agreement",
		DocumentType: "purchase_agreement",
		Content:      "The purchase price is $5,000,000.",
		Relevance:    0.95,
		Confidence:   0.88,
		EntityCount:  3,
	}, sources[0])
}
