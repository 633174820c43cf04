// Package ingestion turns raw text and pre-chunked documents into stored
// partition entries.
//
// The Pipeline type manages the ingestion workflow:
//   - Chunking raw text by rune count with a configurable overlap
//   - Generating embeddings in batches over a worker pool
//   - Appending chunks to the tenant's partition under the cache write lock
//
// Embedding happens before the write lock is taken, so slow model calls
// never block other operations on the tenant. The append itself is
// all-or-nothing: a failed ingestion leaves the partition at its last
// durably persisted state.
package ingestion
