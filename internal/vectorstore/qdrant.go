package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"policy-rag/internal/contextutil"
)

// pointNamespace derives stable Qdrant point UUIDs from chunk IDs.
var pointNamespace = uuid.MustParse("6f1c2a0e-3b7d-5c48-9a61-0d2e4f8b7c35")

// chunkIDKey is the payload field holding the original chunk ID.
const chunkIDKey = "chunk_id"

// defaultGRPCPort is used when QDRANT_URL carries no port.
const defaultGRPCPort = 6334

// QdrantStore is the remote VectorStore backend. Points are addressed by a
// UUIDv5 of their chunk ID, and the chunk ID itself travels in the payload.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore connects to Qdrant over gRPC. rawURL is the REST address
// (e.g. "http://localhost:6333"); the gRPC port is the REST port plus one.
func NewQdrantStore(rawURL string) (*QdrantStore, error) {
	host, port, err := grpcAddress(rawURL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant at %s:%d: %w", host, port, err)
	}
	return &QdrantStore{client: client}, nil
}

func grpcAddress(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL %q: %w", rawURL, err)
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	restPort, err := strconv.Atoi(u.Port())
	if err != nil {
		return host, defaultGRPCPort, nil
	}
	return host, restPort + 1, nil
}

// PointUUID maps a chunk ID to the UUID used as its Qdrant point ID.
func PointUUID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// EnsureCollection creates a cosine collection of vectorSize, or checks that an
// existing one was built with the same size.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.collectionExists(ctx, collection)
	if err != nil {
		return err
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, collection)
		if err != nil {
			return fmt.Errorf("failed to describe collection %s: %w", collection, err)
		}
		switch stored := vectorSizeOf(info); {
		case stored == 0:
			return fmt.Errorf("collection %s reports no vector size", collection)
		case stored != vectorSize:
			return fmt.Errorf("collection %s has vector size %d, embedder produces %d", collection, stored, vectorSize)
		}
		logger.InfoContext(ctx, "collection ready", "backend", "qdrant", "collection", collection, "vector_size", vectorSize)
		return nil
	}

	logger.InfoContext(ctx, "creating collection", "backend", "qdrant", "collection", collection, "vector_size", vectorSize)
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	return nil
}

// Upsert writes points and waits for Qdrant to apply them. Re-upserting a
// chunk ID overwrites the same point.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = toPointStruct(p)
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "qdrant upsert failed", "collection", collection, "points", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

func toPointStruct(p Point) *qdrant.PointStruct {
	payload := make(map[string]any, len(p.Meta)+1)
	for k, v := range p.Meta {
		payload[k] = v
	}
	payload[chunkIDKey] = p.ID

	return &qdrant.PointStruct{
		Id:      qdrant.NewID(PointUUID(p.ID)),
		Vectors: qdrant.NewVectors(p.Vec...),
		Payload: qdrant.NewValueMap(payload),
	}
}

// Search returns the k nearest points by cosine similarity.
func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, errors.New("k must be greater than 0")
	}

	limit := uint64(k)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "qdrant query failed", "collection", collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		meta := decodePayload(hit.GetPayload())
		id, _ := meta[chunkIDKey].(string)
		if id == "" {
			id = hit.GetId().GetUuid()
		}
		results[i] = SearchResult{PointID: id, Score: hit.GetScore(), Meta: meta}
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// Reset deletes the collection. A missing collection is not an error.
func (s *QdrantStore) Reset(ctx context.Context, collection string) error {
	exists, err := s.collectionExists(ctx, collection)
	if err != nil || !exists {
		return err
	}
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "collection reset", "backend", "qdrant", "collection", collection)
	return nil
}

func (s *QdrantStore) collectionExists(ctx context.Context, collection string) (bool, error) {
	ok, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to look up collection %s: %w", collection, err)
	}
	return ok, nil
}

// vectorSizeOf returns 0 when info does not describe a single unnamed vector.
func vectorSizeOf(info *qdrant.CollectionInfo) int {
	return int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
}

// decodePayload turns Qdrant payload values back into the plain Go values they
// were written from. Integers come back as int64.
func decodePayload(fields map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(fields))
	for key, v := range fields {
		if v != nil {
			out[key] = decodeValue(v)
		}
	}
	return out
}

func decodeValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = decodeValue(item)
		}
		return out
	case *qdrant.Value_StructValue:
		return decodePayload(kind.StructValue.GetFields())
	default:
		return nil
	}
}
