package rag

import "errors"

// Query failure classes. Each maps to a fixed user-visible answer; none is
// ever shown to a user directly.
var (
	// ErrRetrieval means the question could not be embedded or the store could not be searched.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrNoEvidence means nothing was retrieved or the best match was below the relevance floor.
	ErrNoEvidence = errors.New("no supporting evidence")
	// ErrGeneration means the model call failed or timed out.
	ErrGeneration = errors.New("generation failed")
	// ErrGroundingViolation means the model answer failed a validator check.
	ErrGroundingViolation = errors.New("answer is not grounded in retrieved context")
)
