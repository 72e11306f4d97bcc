package extract

import (
	"regexp"
	"strings"
)

// headerRegion bounds how far into a document type detection and the
// purchase-price cue are searched. Agreement boilerplate front-loads both.
const headerRegion = 4000

// maxParties caps the parties list; past the named roles the pattern starts
// picking up guarantor schedules.
const maxParties = 8

// DocumentMetadata holds document-level fields attached to every chunk of a
// document so retrieval can filter on them.
type DocumentMetadata struct {
	Title         string
	Type          string
	Parties       []string
	PurchasePrice string
}

// Fields returns the metadata as vector-store payload fields. Empty values
// are omitted; parties are comma-joined.
func (m DocumentMetadata) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if m.Title != "" {
		fields["document_title"] = m.Title
	}
	if m.Type != "" {
		fields["document_type"] = m.Type
	}
	if len(m.Parties) > 0 {
		fields["parties"] = strings.Join(m.Parties, ", ")
	}
	if m.PurchasePrice != "" {
		fields["purchase_price"] = m.PurchasePrice
	}
	return fields
}

// documentTypes is checked in order; more specific phrases come first.
var documentTypes = []struct {
	cue  string
	name string
}{
	{"share purchase agreement", "Share Purchase Agreement"},
	{"stock purchase agreement", "Stock Purchase Agreement"},
	{"asset purchase agreement", "Asset Purchase Agreement"},
	{"merger agreement", "Merger Agreement"},
	{"agreement and plan of merger", "Merger Agreement"},
	{"loan agreement", "Loan Agreement"},
	{"credit agreement", "Credit Agreement"},
	{"escrow agreement", "Escrow Agreement"},
	{"purchase agreement", "Purchase Agreement"},
	{"agreement", "Agreement"},
}

var (
	// partyPattern matches a name followed by a defined-role parenthetical,
	// e.g. `Acme Holdings, Inc. (the "Buyer")`.
	partyPattern = regexp.MustCompile(`([A-Z][A-Za-z0-9&.,' -]{2,60}?),?\s*\(\s*(?:the\s+)?["“]?(?:Buyer|Seller|Purchaser|Company|Parent|Guarantor)["”]?\s*\)`)

	purchasePriceCue = regexp.MustCompile(`(?i)purchase\s+price`)

	amountPattern = regexp.MustCompile(`\$[0-9][0-9,]*(?:\.[0-9]{2})?(?:\s*(?:million|billion|thousand))?`)
)

// ExtractDocumentMetadata derives title, document type, parties and purchase
// price from the document text. fallbackTitle is used when no usable heading
// line exists (callers pass the source filename).
func ExtractDocumentMetadata(text, fallbackTitle string) DocumentMetadata {
	meta := DocumentMetadata{
		Title: extractTitle(text, fallbackTitle),
		Type:  detectDocumentType(text),
	}

	meta.Parties = extractParties(text)
	meta.PurchasePrice = extractPurchasePrice(text)
	return meta
}

// extractTitle returns the first non-empty line short enough to be a heading.
func extractTitle(text, fallback string) string {
	for _, line := range strings.SplitN(text, "\n", 10) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) <= 120 {
			return line
		}
		break
	}
	return fallback
}

func detectDocumentType(text string) string {
	region := text
	if len(region) > headerRegion {
		region = region[:headerRegion]
	}
	region = strings.ToLower(region)
	for _, dt := range documentTypes {
		if strings.Contains(region, dt.cue) {
			return dt.name
		}
	}
	return ""
}

func extractParties(text string) []string {
	var parties []string
	seen := make(map[string]bool)
	for _, match := range partyPattern.FindAllStringSubmatch(text, -1) {
		name := cleanPartyName(match[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		parties = append(parties, name)
		if len(parties) >= maxParties {
			break
		}
	}
	return parties
}

// cleanPartyName trims connective lead-ins the capture group can swallow,
// e.g. "is entered into between Acme Corp." becomes "Acme Corp.".
func cleanPartyName(s string) string {
	s = strings.Trim(s, " ,")
	for _, sep := range []string{" between ", " among ", " with "} {
		if i := strings.LastIndex(s, sep); i >= 0 {
			s = s[i+len(sep):]
		}
	}
	return strings.TrimSpace(s)
}

// extractPurchasePrice returns the dollar amount nearest the first
// "purchase price" cue. The amount commonly precedes the cue, as in
// `$5,000,000 (the "Purchase Price")`, so the window spans both sides.
func extractPurchasePrice(text string) string {
	region := text
	if len(region) > headerRegion {
		region = region[:headerRegion]
	}
	cue := purchasePriceCue.FindStringIndex(region)
	if cue == nil {
		return ""
	}

	start := cue[0] - 120
	if start < 0 {
		start = 0
	}
	end := cue[1] + 200
	if end > len(region) {
		end = len(region)
	}
	if amount := amountPattern.FindString(region[start:end]); amount != "" {
		return amount
	}
	return ""
}
