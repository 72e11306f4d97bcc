package annotate

import "github.com/fyrsmithlabs/lexd/internal/entity"

// Bucket pairs a canonical annotation color with the category it marks.
type Bucket struct {
	Category entity.Category
	Color    entity.RGB
}

// DefaultPalette returns the standard legal-annotation color convention:
// yellow amounts, green percentages, light-gray dates, light-green durations,
// pink defined terms, brown cross-references, blue parties, purple qualifiers.
//
// Order is significant: it breaks distance ties deterministically.
func DefaultPalette() []Bucket {
	return []Bucket{
		{Category: entity.CategoryAmount, Color: entity.RGB{R: 236, G: 236, B: 77}},       // yellow
		{Category: entity.CategoryPercent, Color: entity.RGB{R: 77, G: 223, B: 77}},       // green
		{Category: entity.CategoryDate, Color: entity.RGB{R: 191, G: 191, B: 191}},        // light gray
		{Category: entity.CategoryDuration, Color: entity.RGB{R: 204, G: 236, B: 204}},    // light green
		{Category: entity.CategoryDefinedTerm, Color: entity.RGB{R: 236, G: 198, B: 223}}, // pink
		{Category: entity.CategoryCrossRef, Color: entity.RGB{R: 147, G: 64, B: 51}},      // brown
		{Category: entity.CategoryParty, Color: entity.RGB{R: 77, G: 77, B: 223}},         // blue
		{Category: entity.CategoryQualifier, Color: entity.RGB{R: 185, G: 121, B: 185}},   // purple
	}
}

// categoryCues are lexical hints used to break ties between color buckets and,
// for a small subset, to rescue unrecognized colors (see fallbackCategories).
var categoryCues = map[entity.Category][]string{
	entity.CategoryAmount:  {"$", "usd", "dollar", "payment", "price"},
	entity.CategoryPercent: {"%", "percent"},
	entity.CategoryParty:   {"buyer", "seller", "purchaser", "party", "parties"},
	// "may" is omitted from the month cues: too common as a modal verb.
	entity.CategoryDate:        {"january", "february", "march", "april", "june", "july", "august", "september", "october", "november", "december", "dated"},
	entity.CategoryDuration:    {"days", "months", "years", "period", "anniversary"},
	entity.CategoryDefinedTerm: {"means", "shall mean", "definition"},
	entity.CategoryCrossRef:    {"section", "article", "clause", "exhibit", "schedule"},
	entity.CategoryQualifier:   {"material", "reasonable", "substantial"},
}

// fallbackCategories are tried, in order, when no bucket is within tolerance.
// A hand-drawn mark in an unrecognized color still carries intent when the
// text itself is unambiguous.
var fallbackCategories = []entity.Category{
	entity.CategoryAmount,
	entity.CategoryPercent,
	entity.CategoryParty,
}
