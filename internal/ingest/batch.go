package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/ignore"
)

// BatchStats aggregates one directory run.
type BatchStats struct {
	Documents int
	Failures  int
	Chunks    int
	Entities  int
	Duration  time.Duration
}

// IngestDir ingests every *.json file in dir, fanning documents out over
// the worker pool. Individual document failures are logged and counted,
// never fatal; the error return covers only an unreadable directory.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (*BatchStats, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "ingest.dir")
	defer span.End()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading ingest directory: %w", err)
	}
	rules := ignore.Load(dir, p.logger)
	var files []string
	skipped := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		if rules.Match(e.Name()) {
			skipped++
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	if skipped > 0 {
		p.logger.Debug("skipped ignored inbox files",
			zap.String("dir", dir),
			zap.Int("skipped", skipped))
	}

	results := make(chan *DocumentStats, len(files))
	sem := make(chan struct{}, p.config.Workers)
	var wg sync.WaitGroup
	var failures atomic.Int64

	for _, path := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				failures.Add(1)
				return
			}

			stats, err := p.IngestFile(ctx, path)
			if err != nil {
				failures.Add(1)
				p.logger.Error("document ingestion failed",
					zap.String("path", path),
					zap.Error(err))
				return
			}
			results <- stats
		}(path)
	}
	wg.Wait()
	close(results)

	batch := &BatchStats{Failures: int(failures.Load())}
	for stats := range results {
		batch.Documents++
		batch.Chunks += stats.Chunks
		batch.Entities += stats.Entities
	}
	batch.Duration = time.Since(start)

	p.logger.Info("directory ingested",
		zap.String("dir", dir),
		zap.Int("documents", batch.Documents),
		zap.Int("failures", batch.Failures),
		zap.Int("chunks", batch.Chunks),
		zap.Duration("duration", batch.Duration))
	span.SetAttributes(
		attribute.Int("ingest.documents", batch.Documents),
		attribute.Int("ingest.failures", batch.Failures),
	)
	return batch, nil
}
