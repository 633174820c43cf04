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


// Package storage provides the partition storage abstraction layer for ragstore.
//
// This package defines the PartitionStore interface that decouples the durable
// representation of tenant partitions from the rest of the system. Two backends
// implement it:
//
//   - storage/flatfile: the default backend, one directory per tenant holding a
//     dense binary vector index and a metadata record file, promoted atomically
//     as a pair.
//   - storage/badgerstore: a BadgerDB-backed alternative where pair atomicity
//     comes from a single read-write transaction. Supports in-memory mode,
//     which the test suites use.
//
// # Corruption model
//
// A tenant's partition is stored as two positionally aligned artifacts: the
// vector index and the metadata sequence. Consumers must treat the pair as a
// unit. Load reports ErrCorrupted when exactly one artifact exists or when
// their lengths disagree; it never repairs or deletes anything.
//
// # Constructor Return Type Pattern
//
// Backend constructors return the storage.PartitionStore interface to prevent
// coupling to a specific backend. Internal constructors may return concrete
// types within their implementation package.
//
// # Thread Safety
//
// PartitionStore implementations must be safe for concurrent use. Callers are
// expected to serialize Persist calls for the same tenant (the partition cache
// does this via its per-tenant write lock); Persist calls for different
// tenants may run in parallel.
package storage
