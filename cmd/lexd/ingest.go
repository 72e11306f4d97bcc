package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/ingest"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest extractor output into the vector store",
	Long: `Ingests extracted documents (JSON files produced by the PDF
extractor) into the vector store. The path may be a single file or a
directory of *.json files; without a path the configured input
directory is used.

With --watch the command keeps running after the initial pass and
ingests new files as the extractor writes them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return runIngest(cmd.Context(), path)
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep watching the directory for new files")
}

func runIngest(ctx context.Context, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if path == "" {
		path = a.cfg.Ingest.InputDir
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", path, err)
	}

	if !info.IsDir() {
		stats, err := a.pipeline.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		fmt.Printf("Ingested %s: %d chunks, %d entities\n", stats.DocumentID, stats.Chunks, stats.Entities)
		for src, n := range stats.BySource {
			fmt.Printf("  %s: %d\n", src, n)
		}
		return nil
	}

	stats, err := a.pipeline.IngestDir(ctx, path)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}
	fmt.Printf("Ingested %d documents (%d failed) in %s: %d chunks, %d entities\n",
		stats.Documents, stats.Failures, stats.Duration.Round(time.Millisecond), stats.Chunks, stats.Entities)

	if !ingestWatch {
		return nil
	}

	watcher, err := ingest.NewWatcher(a.pipeline, path, a.zap())
	if err != nil {
		return fmt.Errorf("initializing watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	defer watcher.Stop()
	a.zap().Info("watching for new files", zap.String("dir", path))
	fmt.Printf("Watching %s for new files (Ctrl+C to stop)\n", path)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	return nil
}
