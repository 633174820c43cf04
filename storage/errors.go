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


package storage

import "errors"

var (
	// ErrNotPresent indicates that no partition artifacts exist for the tenant.
	// This is the expected state for a tenant that has never persisted anything.
	ErrNotPresent = errors.New("partition not present")

	// ErrCorrupted indicates that the on-disk artifacts are inconsistent:
	// exactly one of the pair exists, their lengths disagree, or a file fails
	// its header or checksum validation. Stores never auto-repair.
	ErrCorrupted = errors.New("partition corrupted")

	// ErrPersistFailed indicates a write failure while persisting a partition.
	ErrPersistFailed = errors.New("partition persist failed")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a record serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")
)
