package core

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier for stored chunks.
// It is generated by hashing the chunk text, so identical content
// produces identical IDs across tenants and processes.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentRecord is the metadata record stored alongside one embedding vector.
// Record i in a partition describes exactly the vector with id i.
type DocumentRecord struct {
	Filename   string
	ChunkIndex int
	Text       string
	ContentID  ID                // BLAKE2b hash of Text, set at append time
	Attributes map[string]string // Open attribute bag supplied by the caller
}

// Chunk pairs an embedding vector with its metadata record for ingestion.
// Chunks are immutable once stored; a tenant's collection only grows.
type Chunk struct {
	Vector []float32
	Record DocumentRecord
}

// Partition holds one tenant's chunk collection: a dense vector index and
// a positionally aligned metadata sequence. Vector id i occupies
// Vectors[i*Dimension : (i+1)*Dimension] and is described by Records[i].
//
// Partitions are value-semantic for mutation: Append returns a new
// partition and never modifies its receiver, so a reader holding the old
// pointer always observes a consistent snapshot.
type Partition struct {
	Dimension int
	Vectors   []float32
	Records   []DocumentRecord
}

// NewPartition creates an empty in-memory partition with a fixed vector
// dimension. Nothing is persisted until the store's Persist is called.
func NewPartition(dimension int) *Partition {
	return &Partition{Dimension: dimension}
}

// Count returns the number of stored chunks.
func (p *Partition) Count() int {
	return len(p.Records)
}

// VectorAt returns the vector with id i as a subslice of the dense index.
// Callers must not modify the returned slice.
func (p *Partition) VectorAt(i int) []float32 {
	return p.Vectors[i*p.Dimension : (i+1)*p.Dimension]
}

// Append returns a new partition with the chunks added at the end, in order.
// Every vector's dimension is validated before anything is copied, so the
// operation is all-or-nothing. The receiver is left untouched.
func (p *Partition) Append(chunks []Chunk) (*Partition, error) {
	for i := range chunks {
		if err := ValidateChunk(&chunks[i], p.Dimension); err != nil {
			return nil, err
		}
	}

	next := &Partition{
		Dimension: p.Dimension,
		Vectors:   make([]float32, 0, len(p.Vectors)+len(chunks)*p.Dimension),
		Records:   make([]DocumentRecord, 0, len(p.Records)+len(chunks)),
	}
	next.Vectors = append(next.Vectors, p.Vectors...)
	next.Records = append(next.Records, p.Records...)

	for i := range chunks {
		record := chunks[i].Record
		if record.ContentID == 0 {
			record.ContentID = IDFromContent(record.Text)
		}
		next.Vectors = append(next.Vectors, chunks[i].Vector...)
		next.Records = append(next.Records, record)
	}

	return next, nil
}

// SearchHit is a single similarity-search result within a partition.
type SearchHit struct {
	ID     int     // Dense vector id (insertion position)
	Score  float32 // Cosine similarity in [-1, 1]
	Record DocumentRecord
}

// Source is a retrieved chunk surfaced to the caller alongside an answer.
type Source struct {
	Record DocumentRecord
	Score  float32
}

// QueryResult is the final response of a processed query.
// Confidence is a coarse binary signal: 1 if retrieved context informed
// the answer, 0 if the generator ran with empty context.
type QueryResult struct {
	Answer     string
	Sources    []Source
	Confidence float32
}

// PartitionStats summarizes a loaded partition.
type PartitionStats struct {
	TenantID  string
	Documents int
	Dimension int
}
