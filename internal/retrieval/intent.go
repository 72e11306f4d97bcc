package retrieval

import (
	"strings"

	"github.com/fyrsmithlabs/lexd/internal/vectorstore"
)

// Intent is the query's likely information need, classified from lexical
// cues. It selects the initial metadata filter for the first search pass.
type Intent int

const (
	IntentGeneral Intent = iota
	IntentFinancial
	IntentParty
	IntentDate
)

// String returns the intent name.
func (i Intent) String() string {
	switch i {
	case IntentFinancial:
		return "financial"
	case IntentParty:
		return "party"
	case IntentDate:
		return "date"
	default:
		return "general"
	}
}

// intentRules are checked in order; the first matching rule wins. Financial
// cues outrank party and date cues so a mixed question like "when is the
// purchase price payable" targets amount-annotated chunks first.
var intentRules = []struct {
	intent Intent
	cues   []string
}{
	{IntentFinancial, []string{
		"purchase price", "price", "payment", "pay", "consideration",
		"amount", "cost", "$", "million", "earnout", "royalt", "escrow",
		"valuation", "financial",
	}},
	{IntentParty, []string{
		"party", "parties", "buyer", "seller", "purchaser", "vendor",
		"acquirer", "target company", "who is", "who are", "entities",
	}},
	{IntentDate, []string{
		"date", "when", "deadline", "closing", "termination", "expiration",
		"timeline",
	}},
}

// classifyIntent maps a query to its information need by substring match
// against the lowercased query.
func classifyIntent(query string) Intent {
	lower := strings.ToLower(query)
	for _, rule := range intentRules {
		for _, cue := range rule.cues {
			if strings.Contains(lower, cue) {
				return rule.intent
			}
		}
	}
	return IntentGeneral
}

// filter returns the metadata filter for the intent: each specific intent
// targets chunks holding color annotations of the matching category, and
// general queries search unfiltered.
func (i Intent) filter() map[string]interface{} {
	b := vectorstore.NewFilterBuilder()
	switch i {
	case IntentFinancial:
		b.WithColorAmounts()
	case IntentParty:
		b.WithColorParties()
	case IntentDate:
		b.WithColorDates()
	}
	return b.Build()
}

// complexityCues widen the iteration and context budgets: questions about
// layered payment structures or spanning multiple documents need more
// passes than a single-fact lookup.
var complexityCues = []string{
	"purchase price", "consideration", "milestone", "earnout",
	"payment structure", "royalty", "contingent", "closing consideration",
	"aggregate", "valuation", "compare", "across all", "multiple",
	"pattern", "frequently",
}

// isComplexQuery reports whether the query needs the wider budgets.
func isComplexQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, cue := range complexityCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}
