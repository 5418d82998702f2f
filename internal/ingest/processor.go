package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/doku-labs/dokuchat/internal/domain"
)

const documentType = "wiki"

// Options controls how source files are turned into documents.
type Options struct {
	ChunkSize      int
	ChunkOverlap   int
	EnableChunking bool
}

// Processor turns a directory of markdown documents into a flat sequence of
// chunk documents ready for indexing.
type Processor struct {
	opts Options
}

// NewProcessor creates a Processor. Options are assumed validated by the
// configuration loader (overlap < size).
func NewProcessor(opts Options) *Processor {
	return &Processor{opts: opts}
}

// ProcessFile parses one markdown file into documents. Front-matter keys are
// merged into the base metadata; the body is rendered to plain text and,
// when chunking is enabled, split into overlapping windows.
func (p *Processor) ProcessFile(path string) ([]domain.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	metadata := map[string]string{
		domain.MetaSource:   path,
		domain.MetaType:     documentType,
		domain.MetaFilename: filepath.Base(path),
	}

	frontMatter, body := extractFrontMatter(string(raw))
	for k, v := range frontMatter {
		metadata[k] = v
	}

	text := normalizeText(stripMarkdown(body))
	if text == "" {
		return nil, nil
	}

	doc := domain.Document{Content: text, Metadata: metadata}
	if !p.opts.EnableChunking {
		return []domain.Document{doc}, nil
	}

	pieces := splitText(text, p.opts.ChunkSize, p.opts.ChunkOverlap)
	docs := make([]domain.Document, 0, len(pieces))
	for _, piece := range pieces {
		docs = append(docs, domain.Document{Content: piece, Metadata: doc.CloneMetadata()})
	}
	return docs, nil
}

// ProcessDirectory walks dir recursively and processes every .md file. A
// failing file is logged and contributes zero documents; the walk continues.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string) ([]domain.Document, error) {
	var docs []domain.Document
	files := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("ingest: skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fileDocs, err := p.ProcessFile(path)
		if err != nil {
			log.Printf("ingest: error processing %s: %v", path, err)
			return nil
		}
		docs = append(docs, fileDocs...)
		files++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	chunkStatus := "without chunking"
	if p.opts.EnableChunking {
		chunkStatus = "with chunking"
	}
	log.Printf("ingest: processed %d documents from %d files (%s)", len(docs), files, chunkStatus)
	return docs, nil
}
