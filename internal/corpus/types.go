package corpus

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DocType identifies the extraction strategy a file was loaded with.
type DocType string

const (
	DocTypePDF      DocType = "pdf"
	DocTypeText     DocType = "text"
	DocTypeMarkdown DocType = "markdown"
	DocTypeHTML     DocType = "html"
)

// Metadata is attached to every Document and copied onto every Chunk cut from it.
// Page is zero-based; DisplayPage is what users and the model see.
type Metadata struct {
	Source      string  // Corpus-relative, slash-separated path (e.g., "hr/leave.pdf")
	Title       string  // First heading for markdown, filename stem otherwise
	FileExt     string  // Lowercase extension without the dot
	DocType     DocType // Extraction strategy
	FileMtime   int64   // Unix seconds
	IngestedAt  string  // RFC 3339, UTC
	IngestRunID string  // Shared by every document of one ingestion run
	SourceSHA1  string  // Hex digest of the raw file bytes
	Page        int     // Zero-based page index; 0 for non-paginated formats
}

// DisplayPage returns the one-based page number used in references and chunk ids.
func (m Metadata) DisplayPage() int {
	return m.Page + 1
}

// Reference renders the citation string for this location, e.g. "policy.pdf p.2".
func (m Metadata) Reference() string {
	return fmt.Sprintf("%s p.%d", m.Source, m.DisplayPage())
}

// Document is the extracted text of one file, or one page of a PDF.
type Document struct {
	Text string
	Metadata
}

// Chunk is a bounded span of a Document's text plus its inherited metadata.
type Chunk struct {
	ID    string // "{source}::p{display page}::c{index:03d}"
	Index int    // Zero-based, scoped to (Source, Page)
	Text  string
	Metadata
}

// Payload keys shared by every vector store backend.
const (
	KeySource      = "source"
	KeyTitle       = "title"
	KeyFileExt     = "file_ext"
	KeyDocType     = "doc_type"
	KeyFileMtime   = "file_mtime"
	KeyIngestedAt  = "ingested_at"
	KeyIngestRunID = "ingest_run_id"
	KeySourceSHA1  = "source_sha1"
	KeyPage        = "page"
	KeyChunkIndex  = "chunk_index"
	KeyChunkID     = "chunk_id"
	KeyText        = "text"
)

// Payload flattens the chunk into the key/value form persisted next to its vector.
func (c Chunk) Payload() map[string]any {
	return map[string]any{
		KeySource:      c.Source,
		KeyTitle:       c.Title,
		KeyFileExt:     c.FileExt,
		KeyDocType:     string(c.DocType),
		KeyFileMtime:   c.FileMtime,
		KeyIngestedAt:  c.IngestedAt,
		KeyIngestRunID: c.IngestRunID,
		KeySourceSHA1:  c.SourceSHA1,
		KeyPage:        int64(c.Page),
		KeyChunkIndex:  int64(c.Index),
		KeyChunkID:     c.ID,
		KeyText:        c.Text,
	}
}

// ChunkFromPayload rebuilds a chunk from a persisted payload. Numeric values may
// arrive as int64 (Qdrant) or float64 (JSON); both are accepted.
func ChunkFromPayload(p map[string]any) Chunk {
	return Chunk{
		ID:    stringValue(p[KeyChunkID]),
		Index: int(intValue(p[KeyChunkIndex])),
		Text:  stringValue(p[KeyText]),
		Metadata: Metadata{
			Source:      stringValue(p[KeySource]),
			Title:       stringValue(p[KeyTitle]),
			FileExt:     stringValue(p[KeyFileExt]),
			DocType:     DocType(stringValue(p[KeyDocType])),
			FileMtime:   intValue(p[KeyFileMtime]),
			IngestedAt:  stringValue(p[KeyIngestedAt]),
			IngestRunID: stringValue(p[KeyIngestRunID]),
			SourceSHA1:  stringValue(p[KeySourceSHA1]),
			Page:        int(intValue(p[KeyPage])),
		},
	}
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func intValue(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
