package llm

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}+|\p{N}+`)

// HashingEmbedder is a deterministic local embedder. Each lowercase word and
// adjacent word pair is hashed into one of Dim buckets with a signed weight,
// and the result is L2-normalized. The same Seed always yields the same vectors.
type HashingEmbedder struct {
	Dim  int
	seed [8]byte
}

// NewHashingEmbedder creates an embedder producing vectors of size dim.
func NewHashingEmbedder(dim int, seed int64) *HashingEmbedder {
	e := &HashingEmbedder{Dim: dim}
	binary.LittleEndian.PutUint64(e.seed[:], uint64(seed))
	return e
}

// Dimension returns the size of every vector this embedder produces.
func (e *HashingEmbedder) Dimension() int {
	return e.Dim
}

// EmbedTexts embeds every text independently. Texts without any word
// characters embed to the zero vector.
func (e *HashingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}
	if e.Dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", e.Dim)
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result[i] = e.embed(text)
	}
	return result, nil
}

func (e *HashingEmbedder) embed(text string) []float32 {
	vec := make([]float64, e.Dim)
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	for i, tok := range tokens {
		e.add(vec, tok, 1.0)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, e.Dim)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *HashingEmbedder) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write(e.seed[:])
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := sum % uint64(len(vec))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}
