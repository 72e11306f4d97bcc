package vectorstore

// MergeFilters combines two filter maps, with override taking precedence.
//
// Retrieval merges intent-derived annotation filters over caller-supplied
// filters this way, so an explicit filter in the request always wins.
func MergeFilters(base, override map[string]interface{}) map[string]interface{} {
	if base == nil && override == nil {
		return nil
	}
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	result := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		result[k] = v
	}

	return result
}

// FilterBuilder provides a fluent interface for building query filters
// over the chunk metadata fields emitted by the chunker.
type FilterBuilder struct {
	filters map[string]interface{}
}

// NewFilterBuilder creates a new FilterBuilder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make(map[string]interface{}),
	}
}

// With adds a key-value pair to the filter.
func (b *FilterBuilder) With(key string, value interface{}) *FilterBuilder {
	b.filters[key] = value
	return b
}

// WithMap merges an existing filter map.
func (b *FilterBuilder) WithMap(m map[string]interface{}) *FilterBuilder {
	for k, v := range m {
		b.filters[k] = v
	}
	return b
}

// WithDocumentID restricts results to chunks of a single document.
func (b *FilterBuilder) WithDocumentID(id string) *FilterBuilder {
	b.filters["document_id"] = id
	return b
}

// WithDocumentType restricts results by the detected document type.
func (b *FilterBuilder) WithDocumentType(docType string) *FilterBuilder {
	b.filters["document_type"] = docType
	return b
}

// WithAnnotated restricts results to chunks carrying color annotations.
func (b *FilterBuilder) WithAnnotated() *FilterBuilder {
	b.filters["has_annotations"] = true
	return b
}

// WithColorAmounts restricts results to chunks with color-annotated amounts.
func (b *FilterBuilder) WithColorAmounts() *FilterBuilder {
	b.filters["has_color_amounts"] = true
	return b
}

// WithColorParties restricts results to chunks with color-annotated parties.
func (b *FilterBuilder) WithColorParties() *FilterBuilder {
	b.filters["has_color_parties"] = true
	return b
}

// WithColorDates restricts results to chunks with color-annotated dates.
func (b *FilterBuilder) WithColorDates() *FilterBuilder {
	b.filters["has_color_dates"] = true
	return b
}

// WithHighQuality restricts results to chunks whose relevance score cleared
// the high-quality threshold at ingest time.
func (b *FilterBuilder) WithHighQuality() *FilterBuilder {
	b.filters["high_quality_chunk"] = true
	return b
}

// Build returns the constructed filter map.
func (b *FilterBuilder) Build() map[string]interface{} {
	if len(b.filters) == 0 {
		return nil
	}
	return b.filters
}
