package ingestion

import "errors"

var (
	// ErrCacheRequired is returned when a partition cache is not provided.
	ErrCacheRequired = errors.New("partition cache required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrInvalidChunking is returned when the chunk size and overlap are
	// inconsistent (overlap must be smaller than the chunk size).
	ErrInvalidChunking = errors.New("chunk overlap must be smaller than chunk size")
)
