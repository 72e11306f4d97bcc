// Package ingest turns extractor documents into annotated, chunked vector
// store entries. A Pipeline runs the per-document flow: classify color
// spans, merge entity candidates from every extractor, extract
// document-level metadata, chunk with annotation metadata, and store the
// chunks in rate-limited batches. IngestDir fans a directory of extractor
// JSON out over a bounded worker pool, and a Watcher ingests files as an
// extractor drops them.
package ingest
