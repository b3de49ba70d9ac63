package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"policy-rag/internal/corpus"
)

const (
	// ChunkerVersion identifies the splitting rules. Update it when Separators or
	// the ID scheme change so index versions stop matching.
	ChunkerVersion = "v2.0"

	tinyChunkRunes = 200
	hugeChunkRunes = 2000
	topSourceCount = 10
)

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Documents     int            `json:"documents"`
	UniqueSources int            `json:"unique_sources"`
	FileTypes     map[string]int `json:"file_types"`
	FailedFiles   int            `json:"failed_files"`
	Chunks        int            `json:"chunks"`
	ChunkLength   LengthStats    `json:"chunk_length"`
	TinyChunks    int            `json:"tiny_chunks"`
	HugeChunks    int            `json:"huge_chunks"`
	TopSources    []SourceCount  `json:"top_sources"`
	// IndexVersion is a hash of the chunker version, embedder fingerprint and chunk params.
	IndexVersion string `json:"index_version"`
}

// LengthStats describes chunk lengths in runes.
type LengthStats struct {
	Min int `json:"min"`
	Avg int `json:"avg"`
	P50 int `json:"p50"`
	P90 int `json:"p90"`
	P99 int `json:"p99"`
	Max int `json:"max"`
}

// SourceCount is the number of chunks cut from one source.
type SourceCount struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// ComputeStats builds ingestion statistics from the loaded documents and their chunks.
func ComputeStats(docs []corpus.Document, chunks []corpus.Chunk) IngestStats {
	stats := IngestStats{
		Documents: len(docs),
		FileTypes: make(map[string]int),
		Chunks:    len(chunks),
	}

	sources := make(map[string]struct{})
	for _, doc := range docs {
		sources[doc.Source] = struct{}{}
		stats.FileTypes[doc.FileExt]++
	}
	stats.UniqueSources = len(sources)

	lengths := make([]int, len(chunks))
	perSource := make(map[string]int)
	for i, chunk := range chunks {
		n := utf8.RuneCountInString(chunk.Text)
		lengths[i] = n
		if n < tinyChunkRunes {
			stats.TinyChunks++
		}
		if n > hugeChunkRunes {
			stats.HugeChunks++
		}
		perSource[chunk.Source]++
	}
	stats.ChunkLength = computeLengthStats(lengths)
	stats.TopSources = topSources(perSource, topSourceCount)

	return stats
}

// IndexVersion hashes everything that changes how a corpus maps to vectors.
// embedder is an EmbedderSpec fingerprint.
func IndexVersion(embedder string, chunkSize, chunkOverlap int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", ChunkerVersion, embedder, chunkSize, chunkOverlap)))
	return hex.EncodeToString(sum[:8])
}

// computeLengthStats uses nearest-rank percentiles over the sorted lengths.
func computeLengthStats(lengths []int) LengthStats {
	if len(lengths) == 0 {
		return LengthStats{}
	}

	sorted := make([]int, len(lengths))
	copy(sorted, lengths)
	sort.Ints(sorted)

	sum := 0
	for _, n := range sorted {
		sum += n
	}

	pct := func(p float64) int {
		idx := int(math.RoundToEven(p / 100 * float64(len(sorted)-1)))
		return sorted[idx]
	}

	return LengthStats{
		Min: sorted[0],
		Avg: sum / len(sorted),
		P50: pct(50),
		P90: pct(90),
		P99: pct(99),
		Max: sorted[len(sorted)-1],
	}
}

// topSources returns up to n sources ordered by chunk count, then by name.
func topSources(perSource map[string]int, n int) []SourceCount {
	counts := make([]SourceCount, 0, len(perSource))
	for source, chunks := range perSource {
		counts = append(counts, SourceCount{Source: source, Chunks: chunks})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Chunks != counts[j].Chunks {
			return counts[i].Chunks > counts[j].Chunks
		}
		return counts[i].Source < counts[j].Source
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}
