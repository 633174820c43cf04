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


package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/ragstore/ai"
	"github.com/poiesic/ragstore/cache"
	"github.com/poiesic/ragstore/core"
	"github.com/poiesic/ragstore/retriever"
)

const (
	// DefaultTopK is the retrieval depth when none is configured. It is
	// deliberately larger than typical max results so response assembly has
	// hits to spare.
	DefaultTopK = 10

	// DefaultMaxContextBytes bounds the assembled context passed to the
	// generator.
	DefaultMaxContextBytes = 8192

	// DefaultMaxAttempts bounds generation retries.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the initial generation retry delay.
	DefaultBaseDelay = 200 * time.Millisecond
)

// Orchestrator runs the query workflow against one partition cache and one
// model provider. It is safe for concurrent use.
type Orchestrator struct {
	cache           *cache.Cache
	embedder        ai.Embedder
	generator       ai.Generator
	topK            int
	maxContextBytes int
	maxAttempts     int
	baseDelay       time.Duration
	logger          *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithTopK sets the retrieval depth. Retrieval always fetches at least the
// caller's max results, so topK only matters when it is larger.
func WithTopK(k int) Option {
	return func(o *Orchestrator) error {
		if k <= 0 {
			return fmt.Errorf("topK must be greater than 0, got %d", k)
		}
		o.topK = k
		return nil
	}
}

// WithMaxContextBytes sets the context assembly byte budget.
func WithMaxContextBytes(n int) Option {
	return func(o *Orchestrator) error {
		if n <= 0 {
			return fmt.Errorf("maxContextBytes must be greater than 0, got %d", n)
		}
		o.maxContextBytes = n
		return nil
	}
}

// WithRetry sets the generation retry policy.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(o *Orchestrator) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		o.maxAttempts = maxAttempts
		o.baseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates a query orchestrator.
func NewOrchestrator(partitions *cache.Cache, provider ai.Provider, opts ...Option) (*Orchestrator, error) {
	if partitions == nil {
		return nil, ErrCacheRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	o := &Orchestrator{
		cache:           partitions,
		embedder:        provider.Embedder(),
		generator:       provider.Generator(),
		topK:            DefaultTopK,
		maxContextBytes: DefaultMaxContextBytes,
		maxAttempts:     DefaultMaxAttempts,
		baseDelay:       DefaultBaseDelay,
		logger:          slog.Default().With("component", "orchestrator"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// Typed stage results. Each stage function consumes the previous stage's
// record and produces the next, so skipping a stage does not compile.

type embeddedQuery struct {
	query  string
	vector []float32
}

type retrievedHits struct {
	embeddedQuery
	hits []core.SearchHit
}

type assembledContext struct {
	retrievedHits
	contextText  string
	includedHits int
}

type generatedAnswer struct {
	assembledContext
	answer string
}

// ProcessQuery runs the full workflow for one query and returns the answer,
// its sources, and a binary confidence signal.
func (o *Orchestrator) ProcessQuery(ctx context.Context, tenantID, query string, maxResults int) (*core.QueryResult, error) {
	return o.ProcessQueryWithMonitor(ctx, tenantID, query, maxResults, nil)
}

// ProcessQueryWithMonitor runs the full workflow with stage callbacks.
// The monitor receives intermediate results as each stage completes.
func (o *Orchestrator) ProcessQueryWithMonitor(ctx context.Context, tenantID, query string, maxResults int, monitor QueryMonitor) (*core.QueryResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, core.ErrEmptyQuery
	}
	if maxResults <= 0 {
		return nil, ErrInvalidMaxResults
	}

	monitor.Start(query)

	embedded, err := o.embed(ctx, query)
	if err != nil {
		o.logger.Error("query embedding failed", "tenantID", tenantID, "err", err)
		return nil, &QueryError{Stage: StageEmbed, Cause: fmt.Errorf("%w: %v", ai.ErrUpstream, err)}
	}
	monitor.AfterEmbedding(embedded.vector)

	retrieved, err := o.retrieve(ctx, tenantID, maxResults, embedded)
	if err != nil {
		o.logger.Error("retrieval failed", "tenantID", tenantID, "err", err)
		return nil, &QueryError{Stage: StageRetrieve, Cause: err}
	}
	monitor.AfterRetrieval(retrieved.hits)

	assembled := o.buildContext(retrieved)
	monitor.AfterContextAssembly(assembled.contextText, assembled.includedHits)

	generated, err := o.generate(ctx, assembled)
	if err != nil {
		o.logger.Error("generation failed", "tenantID", tenantID, "err", err)
		return nil, &QueryError{Stage: StageGenerate, Cause: err}
	}
	monitor.AfterGeneration(generated.answer)

	result := o.assemble(generated, maxResults)
	monitor.Finish(result)
	return result, nil
}

func (o *Orchestrator) embed(ctx context.Context, query string) (embeddedQuery, error) {
	vector, err := o.embedder.EmbedText(ctx, query)
	if err != nil {
		return embeddedQuery{}, err
	}
	return embeddedQuery{query: query, vector: vector}, nil
}

// retrieve searches the tenant's partition under a shared read lock. The
// lock is released before the generator is ever called.
func (o *Orchestrator) retrieve(ctx context.Context, tenantID string, maxResults int, prev embeddedQuery) (retrievedHits, error) {
	k := o.topK
	if maxResults > k {
		k = maxResults
	}

	var hits []core.SearchHit
	err := o.cache.WithRead(ctx, tenantID, func(p *core.Partition) error {
		var searchErr error
		hits, searchErr = retriever.Search(p, prev.vector, k)
		return searchErr
	})
	if err != nil {
		return retrievedHits{}, err
	}
	return retrievedHits{embeddedQuery: prev, hits: hits}, nil
}

func (o *Orchestrator) buildContext(prev retrievedHits) assembledContext {
	contextText, included := assembleContext(prev.hits, o.maxContextBytes)
	if included < len(prev.hits) {
		o.logger.Debug("context budget dropped hits",
			"retrieved", len(prev.hits),
			"included", included,
			"budget", o.maxContextBytes)
	}
	return assembledContext{retrievedHits: prev, contextText: contextText, includedHits: included}
}

// generate always invokes the generator, even with empty context, so a
// tenant with no documents still receives an answer.
func (o *Orchestrator) generate(ctx context.Context, prev assembledContext) (generatedAnswer, error) {
	var answer string
	err := o.retryGeneration(ctx, func() error {
		var genErr error
		answer, genErr = o.generator.GenerateAnswer(ctx, prev.query, prev.contextText)
		return genErr
	})
	if err != nil {
		return generatedAnswer{}, err
	}
	return generatedAnswer{assembledContext: prev, answer: answer}, nil
}

func (o *Orchestrator) assemble(prev generatedAnswer, maxResults int) *core.QueryResult {
	hits := prev.hits
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	sources := make([]core.Source, 0, len(hits))
	for _, hit := range hits {
		sources = append(sources, core.Source{Record: hit.Record, Score: hit.Score})
	}

	var confidence float32
	if prev.includedHits > 0 {
		confidence = 1
	}

	return &core.QueryResult{
		Answer:     prev.answer,
		Sources:    sources,
		Confidence: confidence,
	}
}
