package rag

import (
	"fmt"
	"strings"
)

// contextSeparator joins the numbered blocks shown to the model.
const contextSeparator = "\n\n---\n\n"

// NumberedContext is the evidence shown to the model for one query.
type NumberedContext struct {
	// Text holds one "[i] {source} p.{page}\n{text}" block per chunk.
	Text string
	// References maps each ordinal to its canonical reference. It is the only
	// set of citations a valid answer may use.
	References map[int]string
}

// AssembleContext numbers chunks 1..n in retrieval order.
func AssembleContext(retrieved []Retrieved) NumberedContext {
	blocks := make([]string, 0, len(retrieved))
	refs := make(map[int]string, len(retrieved))

	for i, r := range retrieved {
		n := i + 1
		ref := r.Chunk.Reference()
		refs[n] = ref
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s", n, ref, r.Chunk.Text))
	}

	return NumberedContext{
		Text:       strings.Join(blocks, contextSeparator),
		References: refs,
	}
}
