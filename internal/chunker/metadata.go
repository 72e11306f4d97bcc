package chunker

import (
	"strings"

	"github.com/fyrsmithlabs/lexd/internal/entity"
)

// Keyword groups scanned against lowercased chunk text. These drive the
// contains_* flags and two components of the relevance score.
var (
	financialKeywords = []string{"purchase price", "payment", "$", "consideration", "amount"}
	partyKeywords     = []string{"buyer", "seller", "purchaser", "party"}
	legalRefKeywords  = []string{"section", "article", "clause", "exhibit", "schedule"}
)

// buildMetadata assembles the vector-store payload for a chunk: color flags
// per category, annotation confidence over the chunk's entities, the weighted
// relevance score, keyword flags, chunk position, and the document-level
// fields passed through from ingestion. Identical input always produces an
// identical payload.
func (c *Chunker) buildMetadata(doc entity.Document, ch *Chunk) map[string]interface{} {
	colorCounts := make(map[entity.Category]int)
	colorTotal := 0
	for _, e := range ch.Entities {
		if e.Source == entity.SourceColor {
			colorCounts[e.Category]++
			colorTotal++
		}
	}

	conf := entity.AnnotationConfidence(ch.Entities)
	lower := strings.ToLower(ch.Text)
	hasFinancial := containsAny(lower, financialKeywords)
	hasParty := containsAny(lower, partyKeywords)

	w := c.config.Weights
	score := w.AnnotationConfidence * conf
	if colorTotal > 0 {
		score += w.ColorPresence
	}
	if colorCounts[entity.CategoryAmount] > 0 {
		score += w.ColorAmounts
	}
	if hasFinancial {
		score += w.FinancialKeywords
	}
	if hasParty {
		score += w.PartyKeywords
	}
	if score > 1 {
		score = 1
	}

	meta := map[string]interface{}{
		"document_id":             doc.ID,
		"chunk_index":             ch.Index,
		"start_offset":            ch.Start,
		"end_offset":              ch.End,
		"has_annotations":         len(ch.Entities) > 0,
		"color_entity_count":      colorTotal,
		"has_color_amounts":       colorCounts[entity.CategoryAmount] > 0,
		"has_color_parties":       colorCounts[entity.CategoryParty] > 0,
		"has_color_dates":         colorCounts[entity.CategoryDate] > 0,
		"has_color_percentages":   colorCounts[entity.CategoryPercent] > 0,
		"has_color_crossrefs":     colorCounts[entity.CategoryCrossRef] > 0,
		"has_color_qualifiers":    colorCounts[entity.CategoryQualifier] > 0,
		"annotation_confidence":   conf,
		"relevance_score":         score,
		"high_quality_chunk":      score > c.config.HighQualityThreshold,
		"contains_financial_info": hasFinancial,
		"contains_party_info":     hasParty,
		"contains_legal_refs":     containsAny(lower, legalRefKeywords),
	}

	// Document metadata rides along on every chunk; chunk-level keys win.
	for k, v := range doc.Metadata {
		if _, ok := meta[k]; !ok {
			meta[k] = v
		}
	}
	return meta
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
