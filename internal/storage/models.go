package storage

import "time"

// VectorRecord is one embedded chunk persisted in the local vector store.
type VectorRecord struct {
	Collection string
	ChunkID    string         // "{source}::p{page}::c{index}", unique within a collection
	Vector     []float32      // Stored as little-endian float32 bytes
	Text       string         // Chunk text content
	Payload    map[string]any // Chunk metadata, stored as JSON
}

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// IngestRun records one execution of the ingestion pipeline.
type IngestRun struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         string
	CorpusRoot     string
	EmbeddingModel string
	Embedder       string // Fingerprint of the embedder that produced the run's vectors
	ChunkSize      int
	ChunkOverlap   int
	Seed           int64
	Reset          bool
	Documents      int
	Chunks         int
	FailedFiles    int
	Error          string
}

// SourceRecord summarizes one ingested source file.
type SourceRecord struct {
	Source     string // Corpus-relative path
	DocType    string
	SourceSHA1 string // Hex SHA-1 of the raw file bytes
	FileMtime  int64
	Pages      int
	Chunks     int
	LastRunID  string
	UpdatedAt  time.Time
}
