// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain validation errors
var (
	// ErrDimensionMismatch indicates a vector whose dimension does not match
	// the partition's fixed dimension. Mismatches are rejected, never coerced.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidTenantID indicates a tenant identifier that is empty or not a
	// safe path segment.
	ErrInvalidTenantID = errors.New("invalid tenant id")

	// ErrInvalidDimension indicates a non-positive partition dimension.
	ErrInvalidDimension = errors.New("dimension must be positive")

	// ErrEmptyQuery indicates an empty query string.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrEmptyText indicates the chunk Text field is empty.
	ErrEmptyText = errors.New("chunk text cannot be empty")
)
