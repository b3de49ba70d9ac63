package rag

import (
	"strings"
	"testing"

	"policy-rag/internal/corpus"
)

func retrievedChunk(source string, page int, text string, score float32) Retrieved {
	return Retrieved{
		Chunk: corpus.Chunk{Text: text, Metadata: corpus.Metadata{Source: source, Page: page}},
		Score: score,
	}
}

func TestAssembleContext(t *testing.T) {
	nc := AssembleContext([]Retrieved{
		retrievedChunk("policy.pdf", 1, "Employees get 20 vacation days.", 0.9),
		retrievedChunk("hr/leave.md", 0, "Sick leave is unlimited.", 0.7),
		retrievedChunk("policy.pdf", 1, "Carry-over is capped at 5 days.", 0.6),
	})

	want := "[1] policy.pdf p.2\nEmployees get 20 vacation days." +
		"\n\n---\n\n" +
		"[2] hr/leave.md p.1\nSick leave is unlimited." +
		"\n\n---\n\n" +
		"[3] policy.pdf p.2\nCarry-over is capped at 5 days."
	if nc.Text != want {
		t.Errorf("Text =\n%s\nwant\n%s", nc.Text, want)
	}

	wantRefs := map[int]string{1: "policy.pdf p.2", 2: "hr/leave.md p.1", 3: "policy.pdf p.2"}
	if len(nc.References) != len(wantRefs) {
		t.Fatalf("References = %v, want %v", nc.References, wantRefs)
	}
	for n, ref := range wantRefs {
		if nc.References[n] != ref {
			t.Errorf("References[%d] = %q, want %q", n, nc.References[n], ref)
		}
	}
}

func TestAssembleContext_Empty(t *testing.T) {
	nc := AssembleContext(nil)
	if nc.Text != "" {
		t.Errorf("Text = %q, want empty", nc.Text)
	}
	if nc.References == nil || len(nc.References) != 0 {
		t.Errorf("References = %v, want empty map", nc.References)
	}
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("How many vacation days?", "[1] policy.pdf p.2\ntext")
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(msgs))
	}
	if msgs[0].Content != systemPrompt {
		t.Error("first message should carry the system prompt")
	}
	for _, want := range []string{"Question: How many vacation days?", "[1] policy.pdf p.2\ntext", RefusalPhrase} {
		if !strings.Contains(msgs[1].Content, want) {
			t.Errorf("user message missing %q", want)
		}
	}
}
