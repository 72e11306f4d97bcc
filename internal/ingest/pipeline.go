package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/lexd/internal/annotate"
	"github.com/fyrsmithlabs/lexd/internal/chunker"
	"github.com/fyrsmithlabs/lexd/internal/entity"
	"github.com/fyrsmithlabs/lexd/internal/extract"
	"github.com/fyrsmithlabs/lexd/internal/vectorstore"
)

var tracer = otel.Tracer("lexd.ingest")

// ErrInvalidConfig indicates missing pipeline dependencies.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	defaultWorkers          = 4
	defaultBatchSize        = 25
	defaultBatchesPerMinute = 600
	defaultSettle           = 500 * time.Millisecond
)

// Config holds the ingestion pipeline settings.
type Config struct {
	// Workers bounds how many documents a directory run processes at once.
	Workers int
	// BatchSize is the number of chunks per vector store write.
	BatchSize int
	// BatchesPerMinute paces store writes, and with them the embedding
	// calls behind AddDocuments. The default is one batch per 100ms.
	BatchesPerMinute int
}

// ApplyDefaults fills in default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchesPerMinute <= 0 {
		c.BatchesPerMinute = defaultBatchesPerMinute
	}
}

// Components are the pipeline's collaborators. Classifier, Merger, Chunker
// and Store are required; Regex and Recognizers extend the candidate set
// when present.
type Components struct {
	Classifier  *annotate.Classifier
	Merger      *entity.Merger
	Chunker     *chunker.Chunker
	Regex       *extract.RegexExtractor
	Recognizers []extract.Recognizer
	Store       vectorstore.Store
}

// Pipeline runs the per-document ingestion flow.
type Pipeline struct {
	classifier  *annotate.Classifier
	merger      *entity.Merger
	chunker     *chunker.Chunker
	regex       *extract.RegexExtractor
	recognizers []extract.Recognizer
	store       vectorstore.Store
	limiter     *rate.Limiter
	config      Config
	logger      *zap.Logger
}

// NewPipeline creates an ingestion pipeline from its components.
func NewPipeline(comp Components, config Config, logger *zap.Logger) (*Pipeline, error) {
	if comp.Classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", ErrInvalidConfig)
	}
	if comp.Merger == nil {
		return nil, fmt.Errorf("%w: merger is required", ErrInvalidConfig)
	}
	if comp.Chunker == nil {
		return nil, fmt.Errorf("%w: chunker is required", ErrInvalidConfig)
	}
	if comp.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		classifier:  comp.Classifier,
		merger:      comp.Merger,
		chunker:     comp.Chunker,
		regex:       comp.Regex,
		recognizers: comp.Recognizers,
		store:       comp.Store,
		// Burst 1 spaces batches evenly instead of letting them bunch up.
		limiter: rate.NewLimiter(rate.Limit(float64(config.BatchesPerMinute)/60.0), 1),
		config:  config,
		logger:  logger,
	}, nil
}

// DocumentStats summarizes one ingested document.
type DocumentStats struct {
	DocumentID string
	Chunks     int
	Entities   int
	BySource   map[entity.Source]int
}

// Ingest runs one document through classification, merging, chunking and
// storage. Recognizer failures are non-fatal: the document proceeds with
// the candidates the remaining extractors produced.
func (p *Pipeline) Ingest(ctx context.Context, in *DocumentInput) (*DocumentStats, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "ingest.document")
	defer span.End()

	if err := in.Validate(); err != nil {
		documentsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("document.id", in.DocumentID),
		attribute.Int("document.spans", len(in.Spans)),
		attribute.Int("document.candidates", len(in.Candidates)),
	)

	colorEntities := p.classifier.ClassifySpans(in.Text, in.Spans)
	nlp, regexCands := in.candidateEntities()
	for _, r := range p.recognizers {
		found, err := r.Recognize(ctx, in.Text)
		if err != nil {
			p.logger.Warn("recognizer failed, continuing without it",
				zap.String("document_id", in.DocumentID),
				zap.Error(err))
			continue
		}
		nlp = append(nlp, found...)
	}
	if p.regex != nil {
		regexCands = append(regexCands, p.regex.Extract(in.Text)...)
	}

	merged, err := p.merger.Merge(colorEntities, nlp, regexCands)
	if err != nil {
		documentsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("merging document %s: %w", in.DocumentID, err)
	}

	meta := extract.ExtractDocumentMetadata(in.Text, in.Title)
	fields := meta.Fields()
	if in.DocumentType != "" {
		fields["document_type"] = in.DocumentType
	}
	if in.SourcePath != "" {
		fields["source_path"] = in.SourcePath
	}

	doc := entity.Document{
		ID:       in.DocumentID,
		Text:     in.Text,
		Entities: merged,
		Metadata: fields,
	}
	chunks, err := p.chunker.Chunk(doc)
	if err != nil {
		documentsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, err
	}

	if err := p.storeChunks(ctx, in.DocumentID, chunks); err != nil {
		documentsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, err
	}

	stats := &DocumentStats{
		DocumentID: in.DocumentID,
		Chunks:     len(chunks),
		Entities:   len(merged),
		BySource:   countBySource(merged),
	}
	for src, n := range stats.BySource {
		entitiesTotal.WithLabelValues(string(src)).Add(float64(n))
	}
	documentsTotal.WithLabelValues("ok").Inc()
	chunksStored.Add(float64(len(chunks)))
	ingestDuration.Observe(time.Since(start).Seconds())

	p.logger.Info("document ingested",
		zap.String("document_id", in.DocumentID),
		zap.Int("chunks", stats.Chunks),
		zap.Int("entities", stats.Entities),
		zap.Int("color_entities", stats.BySource[entity.SourceColor]),
		zap.Duration("duration", time.Since(start)))
	span.SetAttributes(
		attribute.Int("document.chunks", stats.Chunks),
		attribute.Int("document.entities", stats.Entities),
	)
	span.SetStatus(codes.Ok, "")
	return stats, nil
}

// IngestFile ingests one extractor JSON file.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*DocumentStats, error) {
	in, err := ReadInput(path)
	if err != nil {
		documentsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	return p.Ingest(ctx, in)
}

// storeChunks writes the chunks in rate-limited batches.
func (p *Pipeline) storeChunks(ctx context.Context, docID string, chunks []chunker.Chunk) error {
	docs := make([]vectorstore.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = vectorstore.Document{
			ID:       chunkID(docID, ch.Index),
			Content:  ch.Text,
			Metadata: ch.Metadata,
		}
	}
	for lo := 0; lo < len(docs); lo += p.config.BatchSize {
		hi := lo + p.config.BatchSize
		if hi > len(docs) {
			hi = len(docs)
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("storing document %s: %w", docID, err)
		}
		if _, err := p.store.AddDocuments(ctx, docs[lo:hi]); err != nil {
			return fmt.Errorf("storing chunks %d-%d of document %s: %w", lo, hi-1, docID, err)
		}
	}
	return nil
}

// chunkID derives a stable UUID for a chunk so re-ingesting a document
// overwrites its previous chunks instead of duplicating them.
func chunkID(docID string, index int) string {
	name := "lexd:" + docID + ":" + strconv.Itoa(index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func countBySource(entities []entity.ClassifiedEntity) map[entity.Source]int {
	counts := make(map[entity.Source]int)
	for _, e := range entities {
		counts[e.Source]++
	}
	return counts
}
