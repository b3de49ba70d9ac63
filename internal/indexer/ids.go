package indexer

import (
	"fmt"

	"policy-rag/internal/corpus"
)

// ChunkID renders the stable identifier of a chunk. page is zero-based.
func ChunkID(source string, page, index int) string {
	return fmt.Sprintf("%s::p%d::c%03d", source, page+1, index)
}

// AssignChunkIDs numbers chunks per (source, page) in arrival order and sets
// their IDs. The same input always yields the same IDs.
func AssignChunkIDs(chunks []corpus.Chunk) []corpus.Chunk {
	type key struct {
		source string
		page   int
	}
	next := make(map[key]int)

	out := make([]corpus.Chunk, len(chunks))
	for i, chunk := range chunks {
		k := key{source: chunk.Source, page: chunk.Page}
		chunk.Index = next[k]
		chunk.ID = ChunkID(chunk.Source, chunk.Page, chunk.Index)
		next[k]++
		out[i] = chunk
	}
	return out
}
