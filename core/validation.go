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

import (
	"fmt"
	"regexp"
)

// tenantIDPattern restricts tenant identifiers to safe path segments.
// Tenant IDs name on-disk directories, so separators and dots are rejected.
var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// ValidateTenantID validates a tenant identifier.
//
// Validation rules:
//   - Must not be empty
//   - Must contain only [a-zA-Z0-9_-], at most 128 characters
func ValidateTenantID(tenantID string) error {
	if !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}
	return nil
}

// ValidateChunk validates a chunk against a partition's fixed dimension.
//
// Validation rules:
//   - Text must not be empty
//   - Vector length must equal the partition dimension
//
// NOT validated:
//   - ContentID (0 is valid; assigned at append time)
//   - Attributes (any key/value bag is accepted, including nil)
func ValidateChunk(chunk *Chunk, dimension int) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.Record.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyText)
	}
	if len(chunk.Vector) != dimension {
		return fmt.Errorf("%w: %w: got %d, want %d",
			ErrInvalidChunk, ErrDimensionMismatch, len(chunk.Vector), dimension)
	}
	return nil
}

// ValidateDimension validates a partition dimension at store creation time.
func ValidateDimension(dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDimension, dimension)
	}
	return nil
}

// ValidateQueryVector validates a query vector against a partition dimension.
func ValidateQueryVector(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: query vector has %d dimensions, partition has %d",
			ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}
