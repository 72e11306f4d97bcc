package generation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// completeSentinel is the reply that marks the context as sufficient.
const completeSentinel = "COMPLETE"

// gapAnalysisTemplate asks the model whether the retrieved context covers
// the question. Slots: original question, formatted context.
const gapAnalysisTemplate = `Original Question: %s

Current Retrieved Context with Metadata and Annotations:
%s

Based on the original question and the structured context above, what specific information is still missing?
Consider:
- Different document types or sections
- Specific parties, dates, or financial details (upfront payments, milestones, royalties)
- Cross-references between documents
- Alternative terminology (consideration vs purchase price vs transaction value)
- Annotation data showing financial patterns or entity relationships

Generate up to %d focused follow-up search queries (max %d words each, one per line) to find the missing information.
If the context seems complete, respond with "COMPLETE".

Follow-up queries:`

// gapAnalysisContextLimit caps how many sources are shown to the model
// during gap analysis; the full set goes to synthesis.
const gapAnalysisContextLimit = 3

// Stripped from the front of follow-up lines: list bullets and numbering.
var followUpPrefixPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// AnalyzeGaps asks the model whether the accumulated sources answer the
// query. It returns sufficient=true when the model replies with the
// COMPLETE sentinel or produces no usable follow-up, and otherwise a
// bounded list of short follow-up queries.
func (c *Client) AnalyzeGaps(ctx context.Context, query string, sources []Source) (sufficient bool, followUps []string, err error) {
	preview := sources
	if len(preview) > gapAnalysisContextLimit {
		preview = preview[:gapAnalysisContextLimit]
	}

	prompt := fmt.Sprintf(gapAnalysisTemplate,
		query, FormatSources(preview), c.config.MaxFollowUps, c.config.MaxFollowUpWords)

	out, err := c.generate(ctx, prompt, analysisMaxTokens)
	if err != nil {
		return false, nil, err
	}

	sufficient, followUps = parseGapAnalysis(out, c.config.MaxFollowUps, c.config.MaxFollowUpWords)
	c.logger.Debug("gap analysis",
		zap.Bool("sufficient", sufficient),
		zap.Strings("follow_ups", followUps))
	return sufficient, followUps, nil
}

// parseGapAnalysis interprets the model reply. A COMPLETE sentinel means
// the context is sufficient. Otherwise each line is a candidate follow-up:
// bullets and numbering are stripped, over-long lines are rejected, and at
// most maxFollowUps survive. No surviving line also means sufficient.
func parseGapAnalysis(reply string, maxFollowUps, maxWords int) (bool, []string) {
	trimmed := strings.TrimSpace(reply)
	if isCompleteSentinel(trimmed) {
		return true, nil
	}

	var followUps []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = followUpPrefixPattern.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), `"'`)
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		if isCompleteSentinel(line) {
			return true, nil
		}
		if len(strings.Fields(line)) > maxWords {
			continue
		}
		followUps = append(followUps, line)
		if len(followUps) >= maxFollowUps {
			break
		}
	}

	if len(followUps) == 0 {
		return true, nil
	}
	return false, followUps
}

func isCompleteSentinel(line string) bool {
	line = strings.Trim(strings.TrimSpace(line), `"'.`)
	return strings.EqualFold(line, completeSentinel)
}
