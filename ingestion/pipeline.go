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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragstore/ai"
	"github.com/poiesic/ragstore/cache"
	"github.com/poiesic/ragstore/core"
)

// embedBatchSize is the number of chunk texts sent to the embedder per call.
const embedBatchSize = 16

// Pipeline ingests documents into tenant partitions.
// It manages text chunking, concurrent embedding, and the append.
type Pipeline struct {
	partitions   *cache.Cache
	embedder     ai.Embedder
	pool         *ants.Pool
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithChunking sets the text chunk size and overlap, in runes.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		if size <= 0 || overlap < 0 || overlap >= size {
			return ErrInvalidChunking
		}
		p.chunkSize = size
		p.chunkOverlap = overlap
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(partitions *cache.Cache, provider ai.Provider, opts ...Option) (*Pipeline, error) {
	if partitions == nil {
		return nil, ErrCacheRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		partitions:   partitions,
		embedder:     provider.Embedder(),
		pool:         pool,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		logger:       slog.Default().With("component", "ingestion"),
	}

	// Apply options
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// AddDocuments appends already-embedded chunks to the tenant's partition.
// The append and its persist run as one critical section; on any failure
// the partition keeps its last durable state.
func (p *Pipeline) AddDocuments(ctx context.Context, tenantID string, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	err := p.partitions.WithWrite(ctx, tenantID, func(partition *core.Partition) (*core.Partition, error) {
		return partition.Append(chunks)
	})
	if err != nil {
		return err
	}

	p.logger.Info("documents added", "tenantID", tenantID, "chunks", len(chunks))
	return nil
}

// IngestText chunks raw text, embeds the chunks, and appends them to the
// tenant's partition. Embedding runs in batches over the worker pool before
// the write lock is taken. Returns the number of chunks created.
func (p *Pipeline) IngestText(ctx context.Context, tenantID, filename, text string, attributes map[string]string) (int, error) {
	texts := ChunkText(text, p.chunkSize, p.chunkOverlap)
	if len(texts) == 0 {
		return 0, fmt.Errorf("%w: no chunkable content in %q", core.ErrEmptyText, filename)
	}

	vectors, err := p.embedBatches(ctx, texts)
	if err != nil {
		return 0, err
	}

	chunks := make([]core.Chunk, len(texts))
	for i := range texts {
		chunks[i] = core.Chunk{
			Vector: vectors[i],
			Record: core.DocumentRecord{
				Filename:   filename,
				ChunkIndex: i,
				Text:       texts[i],
				Attributes: attributes,
			},
		}
	}

	if err := p.AddDocuments(ctx, tenantID, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// embedBatches fans batched embedder calls out over the worker pool and
// reassembles the vectors in chunk order. The first error wins; remaining
// batches still run to completion before it is returned.
func (p *Pipeline) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batchStart, batch := start, texts[start:end]

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()

			embeddings, err := p.embedder.EmbedTexts(ctx, batch)
			if err == nil && len(embeddings) != len(batch) {
				err = fmt.Errorf("embedding result mismatch. expected %d, received %d", len(batch), len(embeddings))
			}
			if err != nil {
				p.logger.Error("error embedding batch", "offset", batchStart, "err", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			copy(vectors[batchStart:], embeddings)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
