package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/generation"
	"github.com/fyrsmithlabs/lexd/internal/vectorstore"
)

// MockSynthesizer is a mock answer synthesizer for engine tests.
type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, query string, sources []generation.Source) (string, error) {
	args := m.Called(ctx, query, sources)
	return args.String(0), args.Error(1)
}

func newTestEngine(t *testing.T, store Searcher, synth Synthesizer) *Engine {
	t.Helper()
	c, err := NewController(store, nil, Config{}, zap.NewNop())
	require.NoError(t, err)
	e, err := NewEngine(c, synth, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(nil, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEngineQuerySynthesizesAnswer(t *testing.T) {
	store := new(MockSearcher)
	synth := new(MockSynthesizer)
	query := "governing law of the agreement"

	store.On("Search", mock.Anything, query, 25).
		Return([]vectorstore.SearchResult{
			chunkResult("apa-1", 300, 0.9, "This Agreement is governed by Delaware law."),
		}, nil).Once()
	synth.On("Synthesize", mock.Anything, query, mock.Anything).
		Return("The agreement is governed by Delaware law.", nil).Once()

	e := newTestEngine(t, store, synth)
	ans, err := e.Query(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, "The agreement is governed by Delaware law.", ans.Answer)
	assert.False(t, ans.Partial)
	assert.Equal(t, 1, ans.Iterations)
	assert.Equal(t, "general", ans.Intent)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "apa-1", ans.Sources[0].DocumentID)
	assert.Equal(t, 300, ans.Sources[0].StartOffset)
	assert.Equal(t, 0.9, ans.Sources[0].Relevance)
	assert.Equal(t, "This Agreement is governed by Delaware law.", ans.Sources[0].Snippet)

	store.AssertExpectations(t)
	synth.AssertExpectations(t)
}

func TestEngineQueryNoMatches(t *testing.T) {
	store := new(MockSearcher)
	synth := new(MockSynthesizer)

	store.On("Search", mock.Anything, mock.Anything, 25).
		Return([]vectorstore.SearchResult{}, nil).Once()

	e := newTestEngine(t, store, synth)
	ans, err := e.Query(context.Background(), "governing law of the agreement")
	require.NoError(t, err)

	assert.Equal(t, "No documents matched the query.", ans.Answer)
	assert.Empty(t, ans.Sources)
	synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything)
}

// A store failure before anything accumulated still answers, marked
// partial.
func TestEngineQueryStoreFailure(t *testing.T) {
	store := new(MockSearcher)
	synth := new(MockSynthesizer)

	store.On("Search", mock.Anything, mock.Anything, 25).
		Return(nil, errors.New("qdrant: connection refused")).Once()

	e := newTestEngine(t, store, synth)
	ans, err := e.Query(context.Background(), "governing law of the agreement")
	require.NoError(t, err)

	assert.True(t, ans.Partial)
	assert.Equal(t, "No documents matched the query.", ans.Answer)
	synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngineSynthesisFailureReturnsSources(t *testing.T) {
	store := new(MockSearcher)
	synth := new(MockSynthesizer)

	store.On("Search", mock.Anything, mock.Anything, 25).
		Return([]vectorstore.SearchResult{
			chunkResult("apa-1", 0, 0.9, "The purchase price is $5,000,000."),
		}, nil).Once()
	synth.On("Synthesize", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("llm unavailable")).Once()

	e := newTestEngine(t, store, synth)
	ans, err := e.Query(context.Background(), "governing law of the agreement")
	require.NoError(t, err)

	assert.True(t, ans.Partial)
	assert.Empty(t, ans.Answer)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "apa-1", ans.Sources[0].DocumentID)
}

func TestEngineWithoutSynthesizer(t *testing.T) {
	store := new(MockSearcher)

	store.On("Search", mock.Anything, mock.Anything, 25).
		Return([]vectorstore.SearchResult{
			chunkResult("apa-1", 0, 0.9, "The purchase price is $5,000,000."),
		}, nil).Once()

	e := newTestEngine(t, store, nil)
	ans, err := e.Query(context.Background(), "governing law of the agreement")
	require.NoError(t, err)

	assert.Empty(t, ans.Answer)
	assert.False(t, ans.Partial)
	require.Len(t, ans.Sources, 1)
}

func TestEngineSnippetTruncation(t *testing.T) {
	store := new(MockSearcher)
	long := strings.Repeat("x", 450)

	store.On("Search", mock.Anything, mock.Anything, 25).
		Return([]vectorstore.SearchResult{
			chunkResult("apa-1", 0, 0.9, long),
		}, nil).Once()

	e := newTestEngine(t, store, nil)
	ans, err := e.Query(context.Background(), "governing law of the agreement")
	require.NoError(t, err)

	require.Len(t, ans.Sources, 1)
	assert.Len(t, ans.Sources[0].Snippet, snippetLength)
}

func TestEngineEmptyQuery(t *testing.T) {
	e := newTestEngine(t, new(MockSearcher), nil)
	_, err := e.Query(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}
