package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheRequired is returned when the partition cache is nil
	ErrCacheRequired = errors.New("partition cache is required")

	// ErrProviderRequired is returned when the AI provider is nil
	ErrProviderRequired = errors.New("AI provider is required")

	// ErrInvalidMaxResults is returned when maxResults is <= 0
	ErrInvalidMaxResults = errors.New("maxResults must be greater than 0")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// Stage identifies the workflow stage where a query failed.
type Stage string

const (
	StageEmbed    Stage = "embed"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
)

// QueryError is the single user-visible failure for a query.
// It names the stage that failed and carries the underlying cause.
type QueryError struct {
	Stage Stage
	Cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed at %s: %v", e.Stage, e.Cause)
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}
