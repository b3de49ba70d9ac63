package corpus

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"policy-rag/internal/contextutil"
)

// LoadError records a single file that could not be loaded. It never aborts a run.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SourceFile summarizes one loaded file for the ingest manifest.
type SourceFile struct {
	Source     string
	DocType    DocType
	SourceSHA1 string
	FileMtime  int64
	Pages      int
}

// LoadResult is the output of a Loader run.
type LoadResult struct {
	Documents []Document
	Sources   []SourceFile
	Errors    []*LoadError
	Scanned   int
}

// Loader discovers files under a corpus root and extracts Documents from them.
type Loader struct {
	extractors map[string]Extractor
	now        func() time.Time
}

// NewLoader creates a loader using the default extraction strategy per extension.
func NewLoader() *Loader {
	return &Loader{
		extractors: DefaultExtractors(),
		now:        time.Now,
	}
}

// Load scans root and extracts every supported file in sorted order. Files that
// fail to read, decode or parse are logged and recorded in LoadResult.Errors.
// Only failures to access root itself are returned as an error.
func (l *Loader) Load(ctx context.Context, root, runID string) (LoadResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := Scan(ctx, root)
	if err != nil {
		return LoadResult{}, err
	}

	result := LoadResult{Scanned: len(files)}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		docs, source, err := l.loadFile(ctx, file, runID)
		if err != nil {
			loadErr := &LoadError{Path: file.RelPath, Err: err}
			if errors.Is(err, ErrUndecodable) {
				logger.WarnContext(ctx, "skipping file with undecodable text", "source", file.RelPath, "error", err)
			} else {
				logger.WarnContext(ctx, "skipping file that failed to load", "source", file.RelPath, "error", err)
			}
			result.Errors = append(result.Errors, loadErr)
			continue
		}

		result.Documents = append(result.Documents, docs...)
		result.Sources = append(result.Sources, source)
	}

	logger.InfoContext(ctx, "corpus loaded",
		"root", root,
		"files", len(files),
		"documents", len(result.Documents),
		"failed", len(result.Errors),
	)
	return result, nil
}

func (l *Loader) loadFile(ctx context.Context, file ScannedFile, runID string) ([]Document, SourceFile, error) {
	extractor, ok := l.extractors[file.Ext]
	if !ok {
		return nil, SourceFile{}, fmt.Errorf("no extractor for extension %q", file.Ext)
	}

	info, err := os.Stat(file.AbsPath)
	if err != nil {
		return nil, SourceFile{}, fmt.Errorf("failed to stat file: %w", err)
	}
	data, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return nil, SourceFile{}, fmt.Errorf("failed to read file: %w", err)
	}

	extraction, err := extractor.Extract(ctx, data)
	if err != nil {
		return nil, SourceFile{}, err
	}
	if extraction.UsedFallback {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "file is not valid UTF-8, decoded as Windows-1252", "source", file.RelPath)
	}

	sum := sha1.Sum(data)
	title := extraction.Title
	if title == "" {
		title = titleFromFilename(file.RelPath)
	}
	base := Metadata{
		Source:      file.RelPath,
		Title:       title,
		FileExt:     file.Ext,
		DocType:     extractor.DocType(),
		FileMtime:   info.ModTime().Unix(),
		IngestedAt:  l.now().UTC().Format(time.RFC3339),
		IngestRunID: runID,
		SourceSHA1:  hex.EncodeToString(sum[:]),
	}

	docs := make([]Document, 0, len(extraction.Pages))
	for _, page := range extraction.Pages {
		meta := base
		meta.Page = page.Number
		docs = append(docs, Document{Text: page.Text, Metadata: meta})
	}

	return docs, SourceFile{
		Source:     base.Source,
		DocType:    base.DocType,
		SourceSHA1: base.SourceSHA1,
		FileMtime:  base.FileMtime,
		Pages:      len(docs),
	}, nil
}
