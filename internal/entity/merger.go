package entity

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// MergerConfig holds configuration for entity merging.
type MergerConfig struct {
	// MinOverlapFraction is the minimum overlap, as a fraction of the shorter
	// span, for two candidates to be treated as the same real-world entity.
	// Default: 0.5
	MinOverlapFraction float64

	// NLPThreshold is the minimum model-reported confidence for an NLP
	// candidate to outrank a REGEX candidate in the same group.
	// Default: 0.6
	NLPThreshold float64

	// ColorConfidence is the fixed confidence assigned to COLOR entities.
	// It measures "a human deliberately marked this", not classifier certainty.
	// Default: 0.95
	ColorConfidence float64

	// RegexConfidence is the confidence assigned to REGEX candidates that do
	// not carry a per-pattern confidence. Default: 0.75
	RegexConfidence float64
}

// ApplyDefaults sets default values for unset fields.
func (c *MergerConfig) ApplyDefaults() {
	if c.MinOverlapFraction == 0 {
		c.MinOverlapFraction = 0.5
	}
	if c.NLPThreshold == 0 {
		c.NLPThreshold = 0.6
	}
	if c.ColorConfidence == 0 {
		c.ColorConfidence = 0.95
	}
	if c.RegexConfidence == 0 {
		c.RegexConfidence = 0.75
	}
}

// Validate validates the configuration.
func (c MergerConfig) Validate() error {
	if c.MinOverlapFraction <= 0 || c.MinOverlapFraction > 1 {
		return fmt.Errorf("%w: min overlap fraction must be in (0, 1], got %v", ErrInvalidConfig, c.MinOverlapFraction)
	}
	if c.NLPThreshold < 0 || c.NLPThreshold > 1 {
		return fmt.Errorf("%w: nlp threshold must be in [0, 1], got %v", ErrInvalidConfig, c.NLPThreshold)
	}
	if c.ColorConfidence <= 0 || c.ColorConfidence > 1 {
		return fmt.Errorf("%w: color confidence must be in (0, 1], got %v", ErrInvalidConfig, c.ColorConfidence)
	}
	if c.RegexConfidence <= 0 || c.RegexConfidence > 1 {
		return fmt.Errorf("%w: regex confidence must be in (0, 1], got %v", ErrInvalidConfig, c.RegexConfidence)
	}
	return nil
}

// Merger reconciles entity candidates from the three extraction sources into
// one deduplicated, confidence-ranked list per document.
//
// This is the single place where "color metadata outranks NLP/regex" is
// enforced. Downstream consumers read the merged list, never the raw
// per-source lists. The merger is stateless: all tuning lives in MergerConfig.
type Merger struct {
	config MergerConfig
	logger *zap.Logger
}

// NewMerger creates a Merger with the given configuration.
func NewMerger(config MergerConfig, logger *zap.Logger) (*Merger, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{config: config, logger: logger}, nil
}

// Merge reconciles color, NLP and regex candidates for one document.
//
// Candidates are grouped by overlap (more than MinOverlapFraction of the
// shorter span), each group resolves to the candidate from the
// highest-priority source, and the result is sorted by start offset.
// Category conflicts within a group are resolved by trusting the higher
// priority source; the loser is dropped, not retained.
//
// The returned list never contains two entities of the same category with
// overlapping ranges. A violation of that invariant is a defect and surfaces
// as ErrOverlapInvariant. Merging an already-merged list is a no-op.
func (m *Merger) Merge(colorEntities, nlpEntities, regexEntities []ClassifiedEntity) ([]ClassifiedEntity, error) {
	candidates := m.normalize(colorEntities, nlpEntities, regexEntities)
	if len(candidates) == 0 {
		return []ClassifiedEntity{}, nil
	}

	sortCandidates(candidates)

	groups := m.group(candidates)

	winners := make([]ClassifiedEntity, 0, len(groups))
	for _, g := range groups {
		winners = append(winners, m.resolve(g))
	}

	merged := m.coalesceSameCategory(winners)

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Span.Start != merged[j].Span.Start {
			return merged[i].Span.Start < merged[j].Span.Start
		}
		return merged[i].Span.End < merged[j].Span.End
	})

	if err := checkOverlapInvariant(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// normalize stamps sources, applies the confidence policy and drops malformed
// candidates.
func (m *Merger) normalize(colorEntities, nlpEntities, regexEntities []ClassifiedEntity) []ClassifiedEntity {
	out := make([]ClassifiedEntity, 0, len(colorEntities)+len(nlpEntities)+len(regexEntities))

	add := func(e ClassifiedEntity, source Source) {
		if !e.Span.ValidOffsets() {
			m.logger.Warn("dropping candidate with malformed span",
				zap.Int("start", e.Span.Start),
				zap.Int("end", e.Span.End),
				zap.String("source", string(source)),
			)
			return
		}
		if e.Category == CategoryNone || !e.Category.Valid() {
			m.logger.Warn("dropping candidate without category",
				zap.String("category", string(e.Category)),
				zap.String("source", string(source)),
			)
			return
		}
		e.Source = source
		switch source {
		case SourceColor:
			e.Confidence = m.config.ColorConfidence
		case SourceRegex:
			if e.Confidence <= 0 {
				e.Confidence = m.config.RegexConfidence
			}
		}
		if e.Confidence < 0 {
			e.Confidence = 0
		}
		if e.Confidence > 1 {
			e.Confidence = 1
		}
		out = append(out, e)
	}

	for _, e := range colorEntities {
		add(e, SourceColor)
	}
	for _, e := range nlpEntities {
		add(e, SourceNLP)
	}
	for _, e := range regexEntities {
		add(e, SourceRegex)
	}
	return out
}

// sortCandidates orders candidates deterministically before grouping.
func sortCandidates(candidates []ClassifiedEntity) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Span.End != b.Span.End {
			return a.Span.End < b.Span.End
		}
		if a.Source.Priority() != b.Source.Priority() {
			return a.Source.Priority() > b.Source.Priority()
		}
		return a.Confidence > b.Confidence
	})
}

// group partitions start-sorted candidates into overlap groups. A candidate
// joins the current group when it overlaps any member by more than the
// configured fraction of the shorter span.
func (m *Merger) group(candidates []ClassifiedEntity) [][]ClassifiedEntity {
	var groups [][]ClassifiedEntity
	var current []ClassifiedEntity

	joins := func(e ClassifiedEntity) bool {
		for _, member := range current {
			if overlapFraction(e.Span, member.Span) > m.config.MinOverlapFraction {
				return true
			}
		}
		return false
	}

	for _, e := range candidates {
		if len(current) == 0 || joins(e) {
			current = append(current, e)
			continue
		}
		groups = append(groups, current)
		current = []ClassifiedEntity{e}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// effectivePriority ranks a candidate for resolution. NLP below the
// confidence threshold ranks beneath REGEX but remains eligible when it is
// the only candidate in a group.
func (m *Merger) effectivePriority(e ClassifiedEntity) int {
	if e.Source == SourceNLP && e.Confidence <= m.config.NLPThreshold {
		return 0
	}
	return e.Source.Priority()
}

// resolve picks the winning candidate for one overlap group.
func (m *Merger) resolve(group []ClassifiedEntity) ClassifiedEntity {
	best := group[0]
	for _, e := range group[1:] {
		if m.better(e, best) {
			best = e
		}
	}

	if len(group) > 1 {
		for _, e := range group {
			if e.Category != best.Category {
				// Audit trail for category conflicts resolved by source priority.
				m.logger.Debug("merge conflict resolved",
					zap.String("winner_category", string(best.Category)),
					zap.String("winner_source", string(best.Source)),
					zap.String("dropped_category", string(e.Category)),
					zap.String("dropped_source", string(e.Source)),
					zap.Int("start", e.Span.Start),
					zap.Int("end", e.Span.End),
				)
				break
			}
		}
	}
	return best
}

// better reports whether a should win over b.
func (m *Merger) better(a, b ClassifiedEntity) bool {
	pa, pb := m.effectivePriority(a), m.effectivePriority(b)
	if pa != pb {
		return pa > pb
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	// Stable tie-break: keep the earlier, then longer span.
	if a.Span.Start != b.Span.Start {
		return a.Span.Start < b.Span.Start
	}
	return a.Span.Len() > b.Span.Len()
}

// coalesceSameCategory removes residual same-category overlaps between group
// winners. Two groups can stay apart on a small overlap fraction and still
// intersect; when their winners share a category they describe the same
// real-world entity and only the better one survives.
func (m *Merger) coalesceSameCategory(winners []ClassifiedEntity) []ClassifiedEntity {
	sort.SliceStable(winners, func(i, j int) bool {
		if winners[i].Span.Start != winners[j].Span.Start {
			return winners[i].Span.Start < winners[j].Span.Start
		}
		return winners[i].Span.End < winners[j].Span.End
	})

	byCategory := make(map[Category][]ClassifiedEntity)
	for _, w := range winners {
		list := byCategory[w.Category]
		if n := len(list); n > 0 && list[n-1].Span.Intersects(w.Span) {
			if m.better(w, list[n-1]) {
				list[n-1] = w
			}
			m.logger.Debug("coalesced same-category overlap",
				zap.String("category", string(w.Category)),
				zap.Int("start", w.Span.Start),
				zap.Int("end", w.Span.End),
			)
			byCategory[w.Category] = list
			continue
		}
		byCategory[w.Category] = append(list, w)
	}

	out := make([]ClassifiedEntity, 0, len(winners))
	for _, list := range byCategory {
		out = append(out, list...)
	}
	return out
}

// checkOverlapInvariant verifies that no two same-category entities overlap.
// The list must be sorted by start offset.
func checkOverlapInvariant(entities []ClassifiedEntity) error {
	lastEnd := make(map[Category]int)
	for _, e := range entities {
		if end, ok := lastEnd[e.Category]; ok && e.Span.Start < end {
			return fmt.Errorf("%w: category %s at [%d, %d)", ErrOverlapInvariant, e.Category, e.Span.Start, e.Span.End)
		}
		if e.Span.End > lastEnd[e.Category] {
			lastEnd[e.Category] = e.Span.End
		}
	}
	return nil
}
