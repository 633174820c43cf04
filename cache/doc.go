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


// Package cache provides the process-wide registry of loaded tenant partitions.
//
// The Cache maps tenant ids to in-memory partition handles, loading lazily
// from a PartitionStore on first access and creating an empty partition when
// the store has nothing for the tenant. It owns the per-tenant concurrency
// discipline:
//
//   - The registry map is guarded by one short-held mutex; a slow first load
//     for one tenant never blocks access to another (loads run outside the
//     map lock, deduplicated through singleflight).
//   - Each tenant has a weighted semaphore in a lock arena that is never
//     evicted. Readers acquire weight 1 and may run in parallel; a writer
//     acquires the full weight and excludes everything for that tenant.
//     Acquisition is context-aware, so a caller deadline turns a stalled
//     lock into ErrLockTimeout instead of a hang.
//   - WithWrite spans mutation and persist as one critical section: a reader
//     observes either the fully-pre-append or fully-post-append partition,
//     never an intermediate state.
//
// A tenant whose partition fails to load with a corruption error is poisoned:
// the cache refuses to serve it until the process restarts. It never deletes
// or repairs artifacts on its own.
//
// Eviction is off by default (the cache holds every loaded partition for the
// process lifetime). WithCapacity enables an LRU bound over the partition
// data only; tenant locks survive eviction, and WithRead/WithWrite fetch the
// handle after the lock is granted, so writes serialize correctly even when
// the data entry is dropped and reloaded mid-stream. Evicting data is safe
// because every completed write is persisted before the write lock is
// released; the only unpersisted handles are empty never-written partitions.
package cache
