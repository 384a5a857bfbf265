package domain

import "errors"

// Sentinel errors shared across layers. Transport maps them to HTTP codes.
var (
	ErrInvalidFilter          = errors.New("invalid filter document")
	ErrUnknownSegment         = errors.New("unknown segment")
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrIndexUnavailable       = errors.New("search index unavailable")
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	ErrInferenceUnavailable   = errors.New("language inference unavailable")
)
