package indexer

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"policy-rag/internal/corpus"
)

// Separators are tried in order; later entries only split spans the earlier ones
// could not bring under the size limit.
var Separators = []string{"\n\n", "\n", "\n• ", "\n- ", "\n* ", "\n— ", "  ", " ", ""}

// Chunker cuts documents into overlapping spans of bounded rune length.
type Chunker struct {
	size     int
	overlap  int
	splitter textsplitter.TextSplitter
}

// NewChunker creates a chunker. overlap must be smaller than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}

	return &Chunker{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(Separators),
			textsplitter.WithKeepSeparator(true),
		),
	}, nil
}

// Split returns the chunks of every document in document order, then span order.
// Chunks carry a copy of their document's metadata; IDs are left empty.
func (c *Chunker) Split(docs []corpus.Document) ([]corpus.Chunk, error) {
	var chunks []corpus.Chunk
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}

		spans, err := c.splitter.SplitText(doc.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", doc.Reference(), err)
		}

		for _, span := range spans {
			if strings.TrimSpace(span) == "" {
				continue
			}
			chunks = append(chunks, corpus.Chunk{
				Text:     span,
				Metadata: doc.Metadata,
			})
		}
	}
	return chunks, nil
}
