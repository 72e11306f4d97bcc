// Package retrieval runs the iterative query loop over the vector store:
// classify the query's intent, search with an intent-derived metadata
// filter, judge sufficiency through gap analysis, and expand with follow-up
// queries until the context answers the question or the iteration budget
// runs out. The Engine wraps the loop with answer synthesis.
//
// Collaborator failures degrade the result to partial instead of failing
// the query.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/generation"
	"github.com/fyrsmithlabs/lexd/internal/vectorstore"
)

var tracer = otel.Tracer("lexd.retrieval")

var (
	// ErrEmptyQuery indicates a blank query string.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrInvalidConfig indicates invalid retrieval configuration.
	ErrInvalidConfig = errors.New("invalid retrieval configuration")
)

// Config holds the iterative retrieval budgets. The complex variants apply
// when the query carries complexity cues (layered payment structures,
// cross-document comparisons).
type Config struct {
	MaxIterationsSimple  int
	MaxIterationsComplex int

	// FilteredFirstK is k for a filtered first pass; later or unfiltered
	// passes use BaseK + KStep*iteration.
	FilteredFirstK int
	BaseK          int
	KStep          int

	ContextCapSimple  int
	ContextCapComplex int

	SearchTimeout     time.Duration
	AnalyzeTimeout    time.Duration
	SynthesizeTimeout time.Duration
}

// ApplyDefaults fills in default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxIterationsSimple <= 0 {
		c.MaxIterationsSimple = 3
	}
	if c.MaxIterationsComplex <= 0 {
		c.MaxIterationsComplex = 5
	}
	if c.FilteredFirstK <= 0 {
		c.FilteredFirstK = 20
	}
	if c.BaseK <= 0 {
		c.BaseK = 25
	}
	if c.KStep <= 0 {
		c.KStep = 5
	}
	if c.ContextCapSimple <= 0 {
		c.ContextCapSimple = 25
	}
	if c.ContextCapComplex <= 0 {
		c.ContextCapComplex = 35
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 10 * time.Second
	}
	if c.AnalyzeTimeout <= 0 {
		c.AnalyzeTimeout = 30 * time.Second
	}
	if c.SynthesizeTimeout <= 0 {
		c.SynthesizeTimeout = 60 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxIterationsComplex < c.MaxIterationsSimple {
		return fmt.Errorf("%w: complex iteration budget %d below simple budget %d",
			ErrInvalidConfig, c.MaxIterationsComplex, c.MaxIterationsSimple)
	}
	if c.ContextCapComplex < c.ContextCapSimple {
		return fmt.Errorf("%w: complex context cap %d below simple cap %d",
			ErrInvalidConfig, c.ContextCapComplex, c.ContextCapSimple)
	}
	return nil
}

// Searcher is the similarity-search surface the controller consumes.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error)
	SearchWithFilters(ctx context.Context, query string, k int, filters map[string]interface{}) ([]vectorstore.SearchResult, error)
}

// Analyzer judges whether the accumulated context answers the query and
// proposes follow-up queries when it does not.
type Analyzer interface {
	AnalyzeGaps(ctx context.Context, query string, sources []generation.Source) (sufficient bool, followUps []string, err error)
}

// Result is the controller's terminal output: the sorted, capped context
// set plus how the run ended.
type Result struct {
	Contexts   []ContextChunk
	Iterations int
	Intent     Intent
	Complex    bool

	// Partial means a collaborator failed mid-run and the context set is
	// whatever had accumulated by then.
	Partial bool
	// Insufficient means the iteration budget ran out while gap analysis
	// still reported missing information.
	Insufficient bool
}

// Controller runs the bounded iterative retrieval loop. A nil analyzer
// degrades to a single search pass.
type Controller struct {
	store    Searcher
	analyzer Analyzer
	config   Config
	logger   *zap.Logger
}

// NewController creates a retrieval controller.
func NewController(store Searcher, analyzer Analyzer, config Config, logger *zap.Logger) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:    store,
		analyzer: analyzer,
		config:   config,
		logger:   logger,
	}, nil
}

// Run executes the retrieval state machine for one query. Collaborator
// failures never fail the run: the result is marked partial and carries
// whatever context accumulated before the failure.
func (c *Controller) Run(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	ctx, span := tracer.Start(ctx, "retrieval.run")
	defer span.End()

	intent := classifyIntent(query)
	isComplex := isComplexQuery(query)
	maxIter := c.config.MaxIterationsSimple
	contextCap := c.config.ContextCapSimple
	if isComplex {
		maxIter = c.config.MaxIterationsComplex
		contextCap = c.config.ContextCapComplex
	}
	span.SetAttributes(
		attribute.String("retrieval.intent", intent.String()),
		attribute.Bool("retrieval.complex", isComplex),
		attribute.Int("retrieval.max_iterations", maxIter),
	)
	intentTotal.WithLabelValues(intent.String()).Inc()

	st := newState(query)
	res := &Result{Intent: intent, Complex: isComplex}
	current := query
	filter := intent.filter()
	insufficient := false

	for iter := 0; iter < maxIter; iter++ {
		st.Iteration = iter
		res.Iterations = iter + 1

		st.Phase = PhaseQuerying
		if filter != nil {
			st.Filters = append(st.Filters, filter)
		}
		results, err := c.search(ctx, current, iter, filter)
		if err != nil {
			storeFailures.Inc()
			res.Partial = true
			span.RecordError(err)
			c.logger.Warn("vector store search failed, answering from accumulated context",
				zap.Int("iteration", iter),
				zap.Error(err))
			break
		}

		added := st.add(results)
		c.logger.Debug("retrieval iteration",
			zap.Int("iteration", iter),
			zap.String("query", current),
			zap.Int("results", len(results)),
			zap.Int("new", added),
			zap.Int("context_size", len(st.Contexts)))
		if len(results) == 0 {
			break
		}

		// The final iteration's results go straight to DONE; there is no
		// budget left for a follow-up anyway.
		if c.analyzer == nil || iter == maxIter-1 {
			break
		}

		st.Phase = PhaseAnalyzing
		sufficient, followUps, err := c.analyze(ctx, query, st.Contexts)
		if err != nil {
			analysisFailures.Inc()
			res.Partial = true
			span.RecordError(err)
			c.logger.Warn("gap analysis failed, stopping expansion",
				zap.Int("iteration", iter),
				zap.Error(err))
			break
		}
		if sufficient {
			insufficient = false
			break
		}
		insufficient = true

		st.Phase = PhaseExpanding
		st.Pending = append(st.Pending, followUps...)
		if remaining := maxIter - (iter + 1); len(st.Pending) > remaining {
			st.Pending = st.Pending[:remaining]
		}
		if len(st.Pending) == 0 {
			break
		}
		current = st.Pending[0]
		st.Pending = st.Pending[1:]
		filter = classifyIntent(current).filter()
	}

	st.Phase = PhaseDone
	res.Insufficient = insufficient
	res.Contexts = finalize(st.Contexts, contextCap)
	c.logger.Debug("retrieval done",
		zap.Int("iterations", res.Iterations),
		zap.Int("contexts", len(res.Contexts)),
		zap.Bool("partial", res.Partial),
		zap.Bool("insufficient", res.Insufficient),
		zap.Any("filters_applied", st.Filters))

	queriesTotal.WithLabelValues(resultLabel(res)).Inc()
	iterationsPerQuery.Observe(float64(res.Iterations))
	contextSize.Observe(float64(len(res.Contexts)))
	span.SetAttributes(
		attribute.Int("retrieval.iterations", res.Iterations),
		attribute.Int("retrieval.contexts", len(res.Contexts)),
		attribute.Bool("retrieval.partial", res.Partial),
	)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// search issues one similarity search with the iteration's k and filter.
func (c *Controller) search(ctx context.Context, query string, iter int, filter map[string]interface{}) ([]vectorstore.SearchResult, error) {
	k := c.config.BaseK + c.config.KStep*iter
	if len(filter) > 0 && iter == 0 {
		k = c.config.FilteredFirstK
	}

	sctx, cancel := context.WithTimeout(ctx, c.config.SearchTimeout)
	defer cancel()

	if len(filter) > 0 {
		return c.store.SearchWithFilters(sctx, query, k, filter)
	}
	return c.store.Search(sctx, query, k)
}

// analyze asks the collaborator whether the context answers the original
// query. The accumulated set is handed over; the analyzer previews the
// leading chunks.
func (c *Controller) analyze(ctx context.Context, query string, contexts []ContextChunk) (bool, []string, error) {
	actx, cancel := context.WithTimeout(ctx, c.config.AnalyzeTimeout)
	defer cancel()
	return c.analyzer.AnalyzeGaps(actx, query, Sources(contexts))
}

// Sources converts context chunks to the generation collaborator's source
// form.
func Sources(contexts []ContextChunk) []generation.Source {
	out := make([]generation.Source, len(contexts))
	for i, cc := range contexts {
		out[i] = generation.Source{
			Title:        cc.Title,
			DocumentType: cc.DocumentType,
			Content:      cc.Content,
			Relevance:    cc.Relevance,
			Confidence:   cc.Confidence,
			EntityCount:  cc.EntityCount,
		}
	}
	return out
}

// finalize orders the context set by annotation-weighted relevance, then
// similarity, and caps it. The sort is stable so equal chunks keep their
// arrival order across runs.
func finalize(contexts []ContextChunk, limit int) []ContextChunk {
	sorted := make([]ContextChunk, len(contexts))
	copy(sorted, contexts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Relevance != sorted[j].Relevance {
			return sorted[i].Relevance > sorted[j].Relevance
		}
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func resultLabel(r *Result) string {
	if r.Partial {
		return "partial"
	}
	return "complete"
}
