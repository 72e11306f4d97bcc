// Command migrate-collection renames a chromem collection on disk and
// optionally rewrites the source_path metadata prefix on every chunk.
//
// chromem has no rename operation, so the tool copies the collection
// directory, updates the collection metadata, and leaves the original
// in place for manual removal. Run with -dry-run first.
package main

import (
	"encoding/gob"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/lexd/internal/sanitize"
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
		storePath     = flag.String("store", filepath.Join(os.Getenv("HOME"), ".config/lexd/vectorstore"), "Path to vectorstore")
		oldCollection = flag.String("old", "lexd_chunks", "Old collection name")
		newCollection = flag.String("new", "", "New collection name (required)")
		oldPrefix     = flag.String("old-prefix", "", "Old source_path prefix to rewrite")
		newPrefix     = flag.String("new-prefix", "", "New source_path prefix")
		dryRun        = flag.Bool("dry-run", false, "Dry run - don't actually make changes")
	)
	flag.Parse()

	if *newCollection == "" {
		log.Fatal("-new is required")
	}
	if (*oldPrefix == "") != (*newPrefix == "") {
		log.Fatal("-old-prefix and -new-prefix must be set together")
	}

	target := sanitize.Identifier(*newCollection)
	if target != *newCollection {
		log.Printf("Normalized target collection %q -> %q", *newCollection, target)
	}

	log.Printf("Collection Migration")
	log.Printf("  Collection: %q -> %q", *oldCollection, target)
	if *oldPrefix != "" {
		log.Printf("  source_path: %q -> %q", *oldPrefix, *newPrefix)
	}
	log.Printf("  Vectorstore: %s", *storePath)
	log.Printf("  Dry run: %v", *dryRun)

	expandedPath := expandPath(*storePath)

	oldCollDir, err := findCollectionByName(expandedPath, *oldCollection)
	if err != nil {
		log.Fatalf("Failed to find collection %q: %v", *oldCollection, err)
	}
	log.Printf("  Found source collection at: %s", filepath.Base(oldCollDir))

	newCollDir, err := findCollectionByName(expandedPath, target)
	if err == nil && newCollDir != "" {
		log.Fatalf("Target collection %q already exists at %s", target, filepath.Base(newCollDir))
	}

	if *dryRun {
		log.Printf("\n[DRY RUN] Would perform the following:")
		log.Printf("  1. Copy collection directory")
		log.Printf("  2. Rename collection in metadata")
		if *oldPrefix != "" {
			log.Printf("  3. Rewrite source_path prefix in all chunks")
		}
		showDocumentPreview(oldCollDir, *oldPrefix)
		return
	}

	newDirName := generateCollectionDirName()
	newCollDir = filepath.Join(expandedPath, newDirName)

	log.Printf("\nStep 1: Copying collection directory to %s", newDirName)
	if err := copyDir(oldCollDir, newCollDir); err != nil {
		log.Fatalf("Failed to copy collection: %v", err)
	}

	log.Printf("Step 2: Updating collection metadata")
	if err := updateCollectionMetadata(newCollDir, target); err != nil {
		log.Fatalf("Failed to update metadata: %v", err)
	}

	updated := 0
	if *oldPrefix != "" {
		log.Printf("Step 3: Rewriting source_path prefixes")
		updated, err = rewriteSourcePaths(newCollDir, *oldPrefix, *newPrefix)
		if err != nil {
			log.Fatalf("Failed to update chunks: %v", err)
		}
	}

	log.Printf("\n=== Migration Complete ===")
	log.Printf("  New collection: %s", target)
	log.Printf("  Directory: %s", newDirName)
	if *oldPrefix != "" {
		log.Printf("  Chunks updated: %d", updated)
	}
	log.Printf("\nNote: Old collection %q still exists. Remove manually if no longer needed.", *oldCollection)
	log.Printf("Note: Update store.collection in the lexd config to %q.", target)
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

func findCollectionByName(storePath, collectionName string) (string, error) {
	entries, err := os.ReadDir(storePath)
	if err != nil {
		return "", err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metaPath := filepath.Join(storePath, entry.Name(), "00000000.gob")
		name, err := readCollectionName(metaPath)
		if err != nil {
			continue
		}

		if name == collectionName {
			return filepath.Join(storePath, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("collection %q not found", collectionName)
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

func generateCollectionDirName() string {
	// Hex string like the directory names chromem generates.
	return fmt.Sprintf("%08x", uint32(time.Now().Unix()))
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0700); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
		} else {
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

func updateCollectionMetadata(collDir, newName string) error {
	metaPath := filepath.Join(collDir, "00000000.gob")

	file, err := os.Open(metaPath)
	if err != nil {
		return err
	}

	var meta CollectionMetadata
	dec := gob.NewDecoder(file)
	if err := dec.Decode(&meta); err != nil {
		file.Close()
		return err
	}
	file.Close()

	log.Printf("  Old name: %s", meta.Name)
	meta.Name = newName
	log.Printf("  New name: %s", meta.Name)

	file, err = os.Create(metaPath)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := gob.NewEncoder(file)
	return enc.Encode(&meta)
}

func rewriteSourcePaths(collDir, oldPrefix, newPrefix string) (int, error) {
	gobFiles, err := filepath.Glob(filepath.Join(collDir, "*.gob"))
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, gobFile := range gobFiles {
		if strings.HasSuffix(gobFile, "00000000.gob") {
			continue
		}

		doc, err := readDocument(gobFile)
		if err != nil {
			log.Printf("  Warning: Could not read %s: %v", filepath.Base(gobFile), err)
			continue
		}

		src, ok := doc.Metadata["source_path"]
		if !ok || !strings.HasPrefix(src, oldPrefix) {
			continue
		}
		doc.Metadata["source_path"] = newPrefix + strings.TrimPrefix(src, oldPrefix)

		if err := writeDocument(gobFile, doc); err != nil {
			log.Printf("  Warning: Could not write %s: %v", filepath.Base(gobFile), err)
			continue
		}
		updated++
	}

	return updated, nil
}

func showDocumentPreview(collDir, oldPrefix string) {
	gobFiles, err := filepath.Glob(filepath.Join(collDir, "*.gob"))
	if err != nil {
		return
	}

	total := 0
	toRewrite := 0
	for _, gobFile := range gobFiles {
		if strings.HasSuffix(gobFile, "00000000.gob") {
			continue
		}

		doc, err := readDocument(gobFile)
		if err != nil {
			continue
		}

		total++
		if oldPrefix != "" {
			if src, ok := doc.Metadata["source_path"]; ok && strings.HasPrefix(src, oldPrefix) {
				toRewrite++
			}
		}
	}

	log.Printf("\nPreview:")
	log.Printf("  Total chunks: %d", total)
	if oldPrefix != "" {
		log.Printf("  Chunks with matching source_path prefix: %d", toRewrite)
	}
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

func writeDocument(path string, doc *Document) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := gob.NewEncoder(file)
	return enc.Encode(doc)
}
