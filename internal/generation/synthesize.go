package generation

import (
	"context"
	"fmt"
	"strings"
)

// Source is one retrieved chunk handed to the model, with the document
// metadata and annotation signals the prompts reference.
type Source struct {
	Title        string
	DocumentType string
	Content      string
	Relevance    float64
	Confidence   float64
	EntityCount  int
}

// synthesisTemplate is the answer prompt. Slots: formatted context,
// original question.
const synthesisTemplate = `You are a senior legal analyst providing precise analysis of Stock Purchase Agreements and legal documents.

COMPREHENSIVE CONTEXT WITH STRUCTURED METADATA AND ANNOTATIONS:
%s

ORIGINAL QUESTION: %s

INSTRUCTIONS:
1. Leverage the document metadata (types, parties, purchase prices) and annotation data for precise answers
2. Cross-reference information across multiple documents when available
3. Extract ALL financial amounts including: upfront payments, closing consideration, milestone payments, earnouts, royalties, stock consideration
4. Prioritize color-coded entities: yellow = dollar amounts, blue = party names, green = percentages, gray = dates, pink = defined terms, brown = cross-references, purple = qualifiers
5. Weight higher-confidence annotations more heavily; flag findings below 0.7 confidence as requiring verification
6. Quote EXACT language from documents, including dollar amounts and percentages
7. For financial queries, search alternative terminology: "purchase price" may appear as "consideration", "transaction value", "aggregate consideration"
8. If information is definitively absent after thorough analysis, state: "This information is not contained in the provided documents"

STRUCTURE YOUR RESPONSE:
- Direct answer with ALL financial components found
- Supporting evidence with exact quotes and document references
- Breakdown of payment structure (upfront, contingent, percentage-based) with confidence indicators
- Any limitations in the available information

LEGAL ANALYSIS:`

// Synthesize produces the final answer from the query and the full set of
// retrieved sources.
func (c *Client) Synthesize(ctx context.Context, query string, sources []Source) (string, error) {
	prompt := fmt.Sprintf(synthesisTemplate, FormatSources(sources), query)
	return c.generate(ctx, prompt, c.config.MaxTokens)
}

// FormatSources renders sources as numbered document blocks with their
// metadata banner, the shape both prompts expect.
func FormatSources(sources []Source) string {
	if len(sources) == 0 {
		return "No relevant documents found."
	}

	var b strings.Builder
	for i, src := range sources {
		title := src.Title
		if title == "" {
			title = "Untitled document"
		}

		fmt.Fprintf(&b, "=== Document %d: %s ===\n", i+1, title)
		if src.DocumentType != "" {
			fmt.Fprintf(&b, "Type: %s | ", src.DocumentType)
		}
		fmt.Fprintf(&b, "Relevance: %.2f | Annotation confidence: %.2f\n", src.Relevance, src.Confidence)
		if src.EntityCount > 0 {
			fmt.Fprintf(&b, "Color-coded entities: %d\n", src.EntityCount)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(src.Content))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
