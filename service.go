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


package ragstore

import (
	"context"
	"log/slog"

	"github.com/poiesic/ragstore/ai"
	"github.com/poiesic/ragstore/ai/openai"
	"github.com/poiesic/ragstore/cache"
	"github.com/poiesic/ragstore/core"
	"github.com/poiesic/ragstore/ingestion"
	"github.com/poiesic/ragstore/rag"
	"github.com/poiesic/ragstore/storage"
	"github.com/poiesic/ragstore/storage/flatfile"
)

// DefaultDimension matches common OpenAI-compatible embedding models.
const DefaultDimension = 1536

// Service is the top-level facade: per-tenant partition storage, cached
// access, ingestion, and query orchestration behind one handle.
type Service struct {
	store        storage.PartitionStore
	partitions   *cache.Cache
	provider     ai.Provider
	orchestrator *rag.Orchestrator
	pipeline     *ingestion.Pipeline
	logger       *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig      *ai.Config
	provider      ai.Provider
	store         storage.PartitionStore
	dimension     int
	cacheOpts     []cache.Option
	ragOpts       []rag.Option
	ingestionOpts []ingestion.Option
}

// WithAIConfig sets the configuration for the default OpenAI-compatible
// provider. Ignored when WithProvider is also given.
func WithAIConfig(cfg *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider supplies a pre-built model provider instead of constructing
// the OpenAI-compatible default. The service takes ownership and closes it.
func WithProvider(provider ai.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithStore supplies a pre-built partition store instead of the default
// flat-file store rooted at the service base directory. The service takes
// ownership and closes it.
func WithStore(store storage.PartitionStore) ServiceOption {
	return func(o *serviceOptions) {
		o.store = store
	}
}

// WithDimension sets the embedding vector dimension for all partitions.
// Default is DefaultDimension.
func WithDimension(dim int) ServiceOption {
	return func(o *serviceOptions) {
		o.dimension = dim
	}
}

// WithCacheOptions forwards options to the partition cache.
func WithCacheOptions(opts ...cache.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}

// WithQueryOptions forwards options to the query orchestrator.
func WithQueryOptions(opts ...rag.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.ragOpts = append(o.ragOpts, opts...)
	}
}

// WithIngestionOptions forwards options to the ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.ingestionOpts = append(o.ingestionOpts, opts...)
	}
}

// NewService creates a fully wired service. baseDir is the root of the
// default flat-file store; it is ignored when WithStore is given.
func NewService(baseDir string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig:  ai.DefaultConfig(),
		dimension: DefaultDimension,
	}
	for _, opt := range opts {
		opt(options)
	}

	store := options.store
	if store == nil {
		var err error
		store, err = flatfile.NewStore(baseDir)
		if err != nil {
			return nil, err
		}
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	partitions, err := cache.New(store, options.dimension, options.cacheOpts...)
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}

	orchestrator, err := rag.NewOrchestrator(partitions, provider, options.ragOpts...)
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}

	pipeline, err := ingestion.NewPipeline(partitions, provider, options.ingestionOpts...)
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}

	return &Service{
		store:        store,
		partitions:   partitions,
		provider:     provider,
		orchestrator: orchestrator,
		pipeline:     pipeline,
		logger:       slog.Default(),
	}, nil
}

// AddDocuments appends already-embedded chunks to the tenant's partition.
func (s *Service) AddDocuments(ctx context.Context, tenantID string, chunks []core.Chunk) error {
	return s.pipeline.AddDocuments(ctx, tenantID, chunks)
}

// IngestText chunks, embeds, and stores raw text for the tenant.
// Returns the number of chunks created.
func (s *Service) IngestText(ctx context.Context, tenantID, filename, text string, attributes map[string]string) (int, error) {
	return s.pipeline.IngestText(ctx, tenantID, filename, text, attributes)
}

// ProcessQuery answers a query from the tenant's stored documents.
func (s *Service) ProcessQuery(ctx context.Context, tenantID, query string, maxResults int) (*core.QueryResult, error) {
	return s.orchestrator.ProcessQuery(ctx, tenantID, query, maxResults)
}

// ProcessQueryWithMonitor answers a query with stage callbacks.
func (s *Service) ProcessQueryWithMonitor(ctx context.Context, tenantID, query string, maxResults int, monitor rag.QueryMonitor) (*core.QueryResult, error) {
	return s.orchestrator.ProcessQueryWithMonitor(ctx, tenantID, query, maxResults, monitor)
}

// Stats reports the tenant's document count and vector dimension.
func (s *Service) Stats(ctx context.Context, tenantID string) (*core.PartitionStats, error) {
	var stats core.PartitionStats
	err := s.partitions.WithRead(ctx, tenantID, func(p *core.Partition) error {
		stats = core.PartitionStats{
			TenantID:  tenantID,
			Documents: p.Count(),
			Dimension: p.Dimension,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Flush persists dirty partitions without shutting down.
func (s *Service) Flush(ctx context.Context) error {
	return s.partitions.Flush(ctx)
}

// Close flushes loaded partitions and releases all resources.
// The service must not be used afterwards.
func (s *Service) Close(ctx context.Context) error {
	s.pipeline.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}

	if err := s.partitions.Close(ctx); err != nil {
		s.logger.Error("error closing partition cache", "err", err)
		return err
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing partition store", "err", err)
		return err
	}
	return nil
}
