package retrieval

import (
	"strconv"

	"github.com/fyrsmithlabs/lexd/internal/vectorstore"
)

// Phase identifies a step of the per-query retrieval state machine:
// INIT -> QUERYING -> ANALYZING -> (EXPANDING -> QUERYING)* -> DONE.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseQuerying
	PhaseAnalyzing
	PhaseExpanding
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseQuerying:
		return "QUERYING"
	case PhaseAnalyzing:
		return "ANALYZING"
	case PhaseExpanding:
		return "EXPANDING"
	case PhaseDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// ContextChunk is one retrieved chunk in the accumulated context set, with
// the metadata fields the controller and prompts consume parsed out of the
// store payload.
type ContextChunk struct {
	DocumentID   string
	Title        string
	DocumentType string
	ChunkIndex   int
	StartOffset  int
	Content      string
	Score        float32
	Relevance    float64
	Confidence   float64
	EntityCount  int
	HighQuality  bool
}

// dedupKey identifies a chunk across iterations. Chunks carry their document
// and start offset; results missing both fall back to a content fingerprint.
func (c ContextChunk) dedupKey() string {
	if c.DocumentID != "" {
		return c.DocumentID + ":" + strconv.Itoa(c.StartOffset)
	}
	fingerprint := c.Content
	if len(fingerprint) > 150 {
		fingerprint = fingerprint[:150]
	}
	return "c:" + fingerprint
}

// State is the mutable per-query retrieval state: current phase and
// iteration, the deduplicated context set, the filters applied so far, and
// the pending follow-up queue. It lives for one query and is discarded
// after DONE.
type State struct {
	Phase     Phase
	Query     string
	Iteration int
	Contexts  []ContextChunk
	Filters   []map[string]interface{}
	Pending   []string

	seen map[string]struct{}
}

func newState(query string) *State {
	return &State{
		Phase: PhaseInit,
		Query: query,
		seen:  make(map[string]struct{}),
	}
}

// add merges search results into the context set, skipping chunks already
// seen in a previous iteration. Returns how many were new.
func (s *State) add(results []vectorstore.SearchResult) int {
	added := 0
	for _, res := range results {
		chunk := parseContext(res)
		key := chunk.dedupKey()
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.Contexts = append(s.Contexts, chunk)
		added++
	}
	return added
}

// parseContext extracts the typed chunk fields from a search result. The
// qdrant backend returns typed payload values while chromem returns the
// stringified forms ("true", "120", "0.950000"); both are accepted.
func parseContext(res vectorstore.SearchResult) ContextChunk {
	meta := res.Metadata
	return ContextChunk{
		DocumentID:   metadataString(meta, "document_id"),
		Title:        metadataString(meta, "document_title"),
		DocumentType: metadataString(meta, "document_type"),
		ChunkIndex:   metadataInt(meta, "chunk_index"),
		StartOffset:  metadataInt(meta, "start_offset"),
		Content:      res.Content,
		Score:        res.Score,
		Relevance:    metadataFloat(meta, "relevance_score"),
		Confidence:   metadataFloat(meta, "annotation_confidence"),
		EntityCount:  metadataInt(meta, "color_entity_count"),
		HighQuality:  metadataBool(meta, "high_quality_chunk"),
	}
}

func metadataString(meta map[string]interface{}, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metadataInt(meta map[string]interface{}, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func metadataFloat(meta map[string]interface{}, key string) float64 {
	switch v := meta[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

func metadataBool(meta map[string]interface{}, key string) bool {
	switch v := meta[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}
