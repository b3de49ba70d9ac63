package indexer

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"policy-rag/internal/corpus"
)

func TestNewChunker(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "valid", size: 1100, overlap: 160},
		{name: "zero overlap", size: 100, overlap: 0},
		{name: "overlap equals size", size: 100, overlap: 100, wantErr: true},
		{name: "overlap larger than size", size: 100, overlap: 150, wantErr: true},
		{name: "negative overlap", size: 100, overlap: -1, wantErr: true},
		{name: "zero size", size: 0, overlap: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunker, err := NewChunker(tt.size, tt.overlap)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewChunker() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && chunker == nil {
				t.Error("NewChunker() returned nil")
			}
		})
	}
}

func TestChunker_Split(t *testing.T) {
	chunker, err := NewChunker(100, 20)
	if err != nil {
		t.Fatalf("NewChunker() error = %v", err)
	}

	var paragraphs []string
	for i := 0; i < 8; i++ {
		paragraphs = append(paragraphs, strings.Repeat("Employees must follow policy. ", 2))
	}
	long := strings.Join(paragraphs, "\n\n")

	docs := []corpus.Document{
		{Text: "Short note about parking.", Metadata: corpus.Metadata{Source: "a.txt", Title: "A"}},
		{Text: "   \n\t ", Metadata: corpus.Metadata{Source: "blank.txt"}},
		{Text: long, Metadata: corpus.Metadata{Source: "b.pdf", Page: 3, DocType: corpus.DocTypePDF}},
	}

	chunks, err := chunker.Split(docs)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	if len(chunks) < 3 {
		t.Fatalf("Split() returned %d chunks, want at least 3", len(chunks))
	}
	if chunks[0].Text != "Short note about parking." || chunks[0].Source != "a.txt" || chunks[0].Title != "A" {
		t.Errorf("first chunk = %+v", chunks[0])
	}

	for i, chunk := range chunks {
		if chunk.Source == "blank.txt" {
			t.Error("whitespace-only document should produce no chunks")
		}
		if strings.TrimSpace(chunk.Text) == "" {
			t.Errorf("chunk %d is empty", i)
		}
		if n := utf8.RuneCountInString(chunk.Text); n > 100 {
			t.Errorf("chunk %d has %d runes, want <= 100", i, n)
		}
		if chunk.ID != "" {
			t.Errorf("chunk %d ID = %q, want empty before AssignChunkIDs", i, chunk.ID)
		}
		if i > 0 && chunk.Source == "b.pdf" && (chunk.Page != 3 || chunk.DocType != corpus.DocTypePDF) {
			t.Errorf("chunk %d metadata not copied: %+v", i, chunk.Metadata)
		}
	}
}

func TestChunker_SplitEmpty(t *testing.T) {
	chunker, err := NewChunker(100, 10)
	if err != nil {
		t.Fatalf("NewChunker() error = %v", err)
	}
	chunks, err := chunker.Split(nil)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Split(nil) = %d chunks, want 0", len(chunks))
	}
}

func TestAssignChunkIDs(t *testing.T) {
	in := []corpus.Chunk{
		{Text: "1", Metadata: corpus.Metadata{Source: "policy.pdf", Page: 0}},
		{Text: "2", Metadata: corpus.Metadata{Source: "policy.pdf", Page: 0}},
		{Text: "3", Metadata: corpus.Metadata{Source: "policy.pdf", Page: 1}},
		{Text: "4", Metadata: corpus.Metadata{Source: "hr/leave.txt", Page: 0}},
		{Text: "5", Metadata: corpus.Metadata{Source: "policy.pdf", Page: 0}},
	}

	got := AssignChunkIDs(in)

	wantIDs := []string{
		"policy.pdf::p1::c000",
		"policy.pdf::p1::c001",
		"policy.pdf::p2::c000",
		"hr/leave.txt::p1::c000",
		"policy.pdf::p1::c002",
	}
	wantIndexes := []int{0, 1, 0, 0, 2}
	for i := range got {
		if got[i].ID != wantIDs[i] {
			t.Errorf("chunk %d ID = %q, want %q", i, got[i].ID, wantIDs[i])
		}
		if got[i].Index != wantIndexes[i] {
			t.Errorf("chunk %d Index = %d, want %d", i, got[i].Index, wantIndexes[i])
		}
	}

	if in[0].ID != "" {
		t.Error("AssignChunkIDs() should not modify its input")
	}
	if again := AssignChunkIDs(in); !reflect.DeepEqual(again, got) {
		t.Error("AssignChunkIDs() is not deterministic")
	}
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("policy.pdf", 1, 7); got != "policy.pdf::p2::c007" {
		t.Errorf("ChunkID() = %q", got)
	}
	if got := ChunkID("a.md", 0, 1234); got != "a.md::p1::c1234" {
		t.Errorf("ChunkID() = %q", got)
	}
}
