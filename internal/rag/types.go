package rag

// Outcome is the terminal state of one query.
type Outcome string

const (
	// OutcomeAccepted means the model answer passed every validator check.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRefused means there was no usable evidence, the model refused, or
	// the validator rejected the answer.
	OutcomeRefused Outcome = "refused"
	// OutcomeFailed means retrieval or generation failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeEmptyQuestion means the question was blank and nothing ran.
	OutcomeEmptyQuestion Outcome = "empty_question"
)

// Reasons attached to non-accepted responses.
const (
	ReasonNoEvidence     = "no_evidence"
	ReasonBelowThreshold = "below_threshold"
	ReasonModelRefusal   = "model_refusal"
	ReasonRetrieval      = "retrieval_error"
	ReasonGeneration     = "generation_error"
)

// AskRequest represents a RAG query request.
type AskRequest struct {
	// Question is the user's question to answer.
	Question string `json:"question"`
	// K optionally overrides the configured number of chunks to retrieve.
	K int `json:"k,omitempty"`
	// Debug enables debug mode, returning detailed retrieval information.
	Debug bool `json:"debug,omitempty"`
}

// Evidence is one retrieved chunk returned alongside an accepted answer.
type Evidence struct {
	Source string `json:"source"`
	// Page is one-based.
	Page int    `json:"page"`
	Text string `json:"text"`
}

// AskResponse represents the response from a RAG query. Every terminal state
// of a query produces one.
type AskResponse struct {
	// Answer is the validated model answer, the refusal text or a failure message.
	Answer string `json:"answer"`
	// Sources maps citation numbers to references, as claimed by an accepted answer.
	Sources map[int]string `json:"sources"`
	// Docs is the evidence that was retrieved for an accepted answer.
	Docs []Evidence `json:"docs,omitempty"`
	// TopK is the number of chunks requested from the store.
	TopK    int     `json:"top_k"`
	Outcome Outcome `json:"outcome"`
	// Reason explains a refused or failed outcome.
	Reason string `json:"reason,omitempty"`
	// Debug contains debug information when debug mode is enabled.
	Debug *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo contains detailed retrieval information for debugging and evaluation.
type DebugInfo struct {
	// RetrievedChunks contains all retrieved chunks with scores and ranks.
	RetrievedChunks []RetrievedChunk `json:"retrieved_chunks"`
	// References is the numbered context shown to the model.
	References map[int]string `json:"references,omitempty"`
	// RawAnswer is the unvalidated model output.
	RawAnswer string `json:"raw_answer,omitempty"`
}

// RetrievedChunk represents a retrieved chunk with scoring information.
type RetrievedChunk struct {
	// ChunkID is the stable chunk identifier.
	ChunkID string `json:"chunk_id"`
	// Reference is the citation string for the chunk, e.g. "policy.pdf p.2".
	Reference string  `json:"reference"`
	Score     float32 `json:"score"`
	// Rank is the rank of this chunk in the retrieval results (1-based).
	Rank int    `json:"rank"`
	Text string `json:"text"`
}
