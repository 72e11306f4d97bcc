package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/generation"
)

// snippetLength bounds the per-source excerpt returned to callers.
const snippetLength = 200

// Synthesizer produces the final answer over the retrieved sources.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, sources []generation.Source) (string, error)
}

// SourceRef is one context chunk as presented to the caller.
type SourceRef struct {
	DocumentID  string  `json:"document_id"`
	Title       string  `json:"title,omitempty"`
	ChunkIndex  int     `json:"chunk_index"`
	StartOffset int     `json:"start_offset"`
	Relevance   float64 `json:"relevance"`
	Score       float32 `json:"score"`
	Snippet     string  `json:"snippet,omitempty"`
}

// Answer is the final result of one query: the synthesized answer (empty
// when no synthesizer is configured or synthesis failed) plus the context
// it was built from.
type Answer struct {
	Answer       string      `json:"answer"`
	Partial      bool        `json:"partial"`
	Insufficient bool        `json:"insufficient"`
	Iterations   int         `json:"iterations"`
	Intent       string      `json:"intent"`
	Sources      []SourceRef `json:"sources"`
}

// Engine runs the retrieval loop and then answer synthesis. The
// synthesizer is optional; without one, Query returns sources only.
type Engine struct {
	controller *Controller
	synth      Synthesizer
	logger     *zap.Logger
}

// NewEngine creates a query engine around the controller.
func NewEngine(controller *Controller, synth Synthesizer, logger *zap.Logger) (*Engine, error) {
	if controller == nil {
		return nil, fmt.Errorf("%w: controller is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{controller: controller, synth: synth, logger: logger}, nil
}

// Query answers one natural-language query. Collaborator failures surface
// as a partial answer, never as an error; the only errors are an empty
// query and context cancellation before the first search.
func (e *Engine) Query(ctx context.Context, query string) (*Answer, error) {
	res, err := e.controller.Run(ctx, query)
	if err != nil {
		return nil, err
	}

	ans := &Answer{
		Partial:      res.Partial,
		Insufficient: res.Insufficient,
		Iterations:   res.Iterations,
		Intent:       res.Intent.String(),
		Sources:      sourceRefs(res.Contexts),
	}

	if len(res.Contexts) == 0 {
		ans.Answer = "No documents matched the query."
		return ans, nil
	}
	if e.synth == nil {
		return ans, nil
	}

	sctx, cancel := context.WithTimeout(ctx, e.controller.config.SynthesizeTimeout)
	defer cancel()
	answer, err := e.synth.Synthesize(sctx, query, Sources(res.Contexts))
	if err != nil {
		synthesisFailures.Inc()
		ans.Partial = true
		e.logger.Warn("answer synthesis failed, returning sources only", zap.Error(err))
		return ans, nil
	}
	ans.Answer = answer
	return ans, nil
}

func sourceRefs(contexts []ContextChunk) []SourceRef {
	refs := make([]SourceRef, len(contexts))
	for i, cc := range contexts {
		snippet := cc.Content
		if len(snippet) > snippetLength {
			snippet = snippet[:snippetLength]
		}
		refs[i] = SourceRef{
			DocumentID:  cc.DocumentID,
			Title:       cc.Title,
			ChunkIndex:  cc.ChunkIndex,
			StartOffset: cc.StartOffset,
			Relevance:   cc.Relevance,
			Score:       cc.Score,
			Snippet:     snippet,
		}
	}
	return refs
}
