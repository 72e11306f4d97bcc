// Command check-metadata inspects a chromem vector store on disk and
// reports what chunk metadata each collection actually carries.
//
// Retrieval filters on metadata flags (has_color_amounts, has_color_parties,
// high_quality_chunk), so a collection ingested by an older build can
// silently stop matching filtered searches. This tool shows per-key
// coverage without starting the server.
package main

import (
	"encoding/gob"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document mirrors the structure chromem persists per chunk.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// CollectionMetadata mirrors the 00000000.gob metadata structure.
type CollectionMetadata struct {
	Name     string
	Metadata map[string]string
}

func main() {
	var (
		storePath  = flag.String("store", filepath.Join(os.Getenv("HOME"), ".config/lexd/vectorstore"), "Path to vectorstore")
		collection = flag.String("collection", "", "Only inspect this collection (default: all)")
		samples    = flag.Int("samples", 1, "Sample documents to print per collection")
	)
	flag.Parse()

	expandedPath := expandPath(*storePath)

	entries, err := os.ReadDir(expandedPath)
	if err != nil {
		log.Fatalf("Failed to read vectorstore %s: %v", expandedPath, err)
	}

	found := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		collDir := filepath.Join(expandedPath, entry.Name())
		name, err := readCollectionName(filepath.Join(collDir, "00000000.gob"))
		if err != nil {
			// Not a collection directory.
			continue
		}
		if *collection != "" && name != *collection {
			continue
		}

		found++
		inspectCollection(name, collDir, *samples)
	}

	if found == 0 {
		if *collection != "" {
			log.Fatalf("Collection %q not found in %s", *collection, expandedPath)
		}
		log.Fatalf("No collections found in %s", expandedPath)
	}
}

func inspectCollection(name, collDir string, samples int) {
	gobFiles, err := filepath.Glob(filepath.Join(collDir, "*.gob"))
	if err != nil {
		log.Printf("Warning: could not list %s: %v", collDir, err)
		return
	}

	var (
		docs      int
		dim       int
		mixedDims bool
		noEmbed   int
		keyCount  = map[string]int{}
		sampled   []*Document
	)

	for _, gobFile := range gobFiles {
		if strings.HasSuffix(gobFile, "00000000.gob") {
			continue
		}

		doc, err := readDocument(gobFile)
		if err != nil {
			log.Printf("Warning: could not read %s: %v", filepath.Base(gobFile), err)
			continue
		}

		docs++
		switch {
		case len(doc.Embedding) == 0:
			noEmbed++
		case dim == 0:
			dim = len(doc.Embedding)
		case dim != len(doc.Embedding):
			mixedDims = true
		}

		for k := range doc.Metadata {
			keyCount[k]++
		}
		if len(sampled) < samples {
			sampled = append(sampled, doc)
		}
	}

	fmt.Printf("Collection: %s (%s)\n", name, filepath.Base(collDir))
	fmt.Printf("  Documents: %d\n", docs)
	fmt.Printf("  Embedding dimension: %d\n", dim)
	if mixedDims {
		fmt.Printf("  WARNING: documents have mixed embedding dimensions\n")
	}
	if noEmbed > 0 {
		fmt.Printf("  WARNING: %d documents have no embedding\n", noEmbed)
	}

	if docs > 0 {
		fmt.Printf("  Metadata key coverage:\n")
		keys := make([]string, 0, len(keyCount))
		for k := range keyCount {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			marker := ""
			if keyCount[k] < docs {
				marker = fmt.Sprintf("  <- missing on %d", docs-keyCount[k])
			}
			fmt.Printf("    %-24s %d/%d%s\n", k, keyCount[k], docs, marker)
		}
	}

	for _, doc := range sampled {
		fmt.Printf("  Sample %s:\n", doc.ID)
		fmt.Printf("    Content length: %d\n", len(doc.Content))
		keys := make([]string, 0, len(doc.Metadata))
		for k := range doc.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %s: %s\n", k, doc.Metadata[k])
		}
	}
	fmt.Println()
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home + path[1:]
	}
	return path
}

func readCollectionName(metaPath string) (string, error) {
	file, err := os.Open(metaPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var meta CollectionMetadata
	dec := gob.NewDecoder(file)
	if err := dec.Decode(&meta); err != nil {
		return "", err
	}

	return meta.Name, nil
}

func readDocument(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var doc Document
	dec := gob.NewDecoder(file)
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	return &doc, nil
}
