package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/ragstore/ai"
	"github.com/poiesic/ragstore/ai/mock"
	"github.com/poiesic/ragstore/cache"
	"github.com/poiesic/ragstore/core"
	"github.com/poiesic/ragstore/storage/flatfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHarness struct {
	orchestrator *Orchestrator
	cache        *cache.Cache
	embedder     *mock.MockEmbedder
	generator    *mock.MockGenerator
}

func newHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()

	store, err := flatfile.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c, err := cache.New(store, 3)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedderWithDimension(3)
	generator := mock.NewMockGenerator()
	provider := mock.NewMockProviderWithServices(embedder, generator)

	o, err := NewOrchestrator(c, provider, opts...)
	require.NoError(t, err)

	return &testHarness{orchestrator: o, cache: c, embedder: embedder, generator: generator}
}

// seed appends chunks with known vectors so similarity ranking is predictable.
func (h *testHarness) seed(t *testing.T, tenantID string, chunks ...core.Chunk) {
	t.Helper()
	err := h.cache.WithWrite(context.Background(), tenantID, func(p *core.Partition) (*core.Partition, error) {
		return p.Append(chunks)
	})
	require.NoError(t, err)
}

func testChunk(text string, vector ...float32) core.Chunk {
	return core.Chunk{
		Vector: vector,
		Record: core.DocumentRecord{Filename: "doc.txt", Text: text},
	}
}

// fixedEmbedding makes the mock embedder return the given query vector.
func (h *testHarness) fixedEmbedding(vector []float32) {
	h.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vector, nil
	}
}

func TestNewOrchestrator(t *testing.T) {
	store, err := flatfile.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	c, err := cache.New(store, 3)
	require.NoError(t, err)

	t.Run("nil cache", func(t *testing.T) {
		_, err := NewOrchestrator(nil, mock.NewMockProvider())
		assert.Equal(t, ErrCacheRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewOrchestrator(c, nil)
		assert.Equal(t, ErrProviderRequired, err)
	})

	t.Run("invalid topK", func(t *testing.T) {
		_, err := NewOrchestrator(c, mock.NewMockProvider(), WithTopK(0))
		assert.Error(t, err)
	})

	t.Run("invalid retry", func(t *testing.T) {
		_, err := NewOrchestrator(c, mock.NewMockProvider(), WithRetry(0, time.Millisecond))
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})
}

func TestProcessQuery_InputValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("empty query", func(t *testing.T) {
		_, err := h.orchestrator.ProcessQuery(ctx, "u1", "   ", 5)
		assert.ErrorIs(t, err, core.ErrEmptyQuery)
	})

	t.Run("invalid tenant", func(t *testing.T) {
		_, err := h.orchestrator.ProcessQuery(ctx, "../escape", "question", 5)
		assert.ErrorIs(t, err, core.ErrInvalidTenantID)
	})

	t.Run("non-positive max results", func(t *testing.T) {
		_, err := h.orchestrator.ProcessQuery(ctx, "u1", "question", 0)
		assert.ErrorIs(t, err, ErrInvalidMaxResults)
	})

	// Validation failures never reach the model services.
	assert.Zero(t, h.embedder.CallCount())
	assert.Zero(t, h.generator.CallCount())
}

func TestProcessQuery_EmptyTenant(t *testing.T) {
	h := newHarness(t)

	result, err := h.orchestrator.ProcessQuery(context.Background(), "newcomer", "anything there?", 5)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Answer, "generator must still be invoked with empty context")
	assert.Empty(t, result.Sources)
	assert.Equal(t, float32(0), result.Confidence)
	assert.Equal(t, 1, h.generator.CallCount())
}

func TestProcessQuery_NearestChunkRanksFirst(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u1",
		testChunk("m1", 1, 0, 0),
		testChunk("m2", 0, 1, 0),
		testChunk("m3", 0, 0, 1),
	)
	h.fixedEmbedding([]float32{0, 1, 0})

	result, err := h.orchestrator.ProcessQuery(context.Background(), "u1", "which chunk?", 1)
	require.NoError(t, err)

	require.Len(t, result.Sources, 1)
	assert.Equal(t, "m2", result.Sources[0].Record.Text)
	assert.InDelta(t, 1.0, result.Sources[0].Score, 1e-6)
	assert.Equal(t, float32(1), result.Confidence)
}

func TestProcessQuery_TenantIsolation(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u1", testChunk("belongs to u1", 0, 1, 0))
	h.seed(t, "u2", testChunk("belongs to u2", 0, 1, 0))
	h.fixedEmbedding([]float32{0, 1, 0})

	result, err := h.orchestrator.ProcessQuery(context.Background(), "u1", "whose?", 10)
	require.NoError(t, err)

	require.Len(t, result.Sources, 1)
	assert.Equal(t, "belongs to u1", result.Sources[0].Record.Text)
}

func TestProcessQuery_MaxResultsTruncation(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u1",
		testChunk("a", 1, 0, 0),
		testChunk("b", 0.9, 0.1, 0),
		testChunk("c", 0.8, 0.2, 0),
		testChunk("d", 0, 0, 1),
	)
	h.fixedEmbedding([]float32{1, 0, 0})

	var seen []core.SearchHit
	monitor := &recordingMonitor{}
	result, err := h.orchestrator.ProcessQueryWithMonitor(context.Background(), "u1", "q", 2, monitor)
	require.NoError(t, err)
	seen = monitor.hits

	// Retrieval depth is the configured topK, truncation happens at assembly.
	assert.Equal(t, 4, len(seen))
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "a", result.Sources[0].Record.Text)
	assert.Equal(t, "b", result.Sources[1].Record.Text)
}

func TestProcessQuery_EmbedFailureSkipsRetrieval(t *testing.T) {
	h := newHarness(t)
	h.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("model offline")
	}

	_, err := h.orchestrator.ProcessQuery(context.Background(), "u1", "q", 5)
	require.Error(t, err)

	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, StageEmbed, qerr.Stage)
	assert.ErrorIs(t, err, ai.ErrUpstream)
	assert.Zero(t, h.generator.CallCount(), "generation must not run after embed failure")
}

func TestProcessQuery_GeneratorRetriedThenFails(t *testing.T) {
	h := newHarness(t, WithRetry(3, time.Millisecond))
	h.generator.GenerateAnswerFunc = func(ctx context.Context, query, contextText string) (string, error) {
		return "", errors.New("model overloaded")
	}

	_, err := h.orchestrator.ProcessQuery(context.Background(), "u1", "q", 5)
	require.Error(t, err)

	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, StageGenerate, qerr.Stage)
	assert.ErrorIs(t, err, ai.ErrUpstream)
	assert.Equal(t, 3, h.generator.CallCount(), "generator should be retried to the attempt bound")
}

func TestProcessQuery_GeneratorTransientFailureRecovers(t *testing.T) {
	h := newHarness(t, WithRetry(3, time.Millisecond))
	calls := 0
	h.generator.GenerateAnswerFunc = func(ctx context.Context, query, contextText string) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("hiccup")
		}
		return "recovered answer", nil
	}

	result, err := h.orchestrator.ProcessQuery(context.Background(), "u1", "q", 5)
	require.NoError(t, err)
	assert.Equal(t, "recovered answer", result.Answer)
	assert.Equal(t, 2, calls)
}

func TestProcessQuery_ContextBudget(t *testing.T) {
	h := newHarness(t, WithMaxContextBytes(12))
	h.seed(t, "u1",
		testChunk("short", 1, 0, 0),
		testChunk("a much longer chunk that cannot fit", 0.9, 0.1, 0),
	)
	h.fixedEmbedding([]float32{1, 0, 0})

	var contextSeen string
	h.generator.GenerateAnswerFunc = func(ctx context.Context, query, contextText string) (string, error) {
		contextSeen = contextText
		return "ok", nil
	}

	result, err := h.orchestrator.ProcessQuery(context.Background(), "u1", "q", 5)
	require.NoError(t, err)

	assert.Equal(t, "short", contextSeen, "over-budget hit dropped whole, included chunk intact")
	assert.Equal(t, float32(1), result.Confidence)
	// Sources are unaffected by the context budget.
	assert.Len(t, result.Sources, 2)
}

func TestProcessQuery_NothingFitsBudget(t *testing.T) {
	h := newHarness(t, WithMaxContextBytes(3))
	h.seed(t, "u1", testChunk("does not fit at all", 1, 0, 0))
	h.fixedEmbedding([]float32{1, 0, 0})

	var contextSeen string
	h.generator.GenerateAnswerFunc = func(ctx context.Context, query, contextText string) (string, error) {
		contextSeen = contextText
		return "unguided answer", nil
	}

	result, err := h.orchestrator.ProcessQuery(context.Background(), "u1", "q", 5)
	require.NoError(t, err)

	assert.Empty(t, contextSeen)
	assert.Equal(t, float32(0), result.Confidence, "no included context means confidence 0")
	assert.Len(t, result.Sources, 1)
}

func TestProcessQuery_DimensionMismatchFailsRetrieval(t *testing.T) {
	h := newHarness(t)
	h.fixedEmbedding([]float32{1, 0}) // partition dimension is 3

	_, err := h.orchestrator.ProcessQuery(context.Background(), "u1", "q", 5)
	require.Error(t, err)

	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, StageRetrieve, qerr.Stage)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestProcessQuery_LockTimeoutFailsRetrieval(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u1", testChunk("x", 1, 0, 0))

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- h.cache.WithWrite(context.Background(), "u1", func(p *core.Partition) (*core.Partition, error) {
			close(holding)
			<-release
			return p, nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := h.orchestrator.ProcessQuery(ctx, "u1", "q", 5)
	require.Error(t, err)

	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, StageRetrieve, qerr.Stage)
	assert.ErrorIs(t, err, cache.ErrLockTimeout)

	close(release)
	require.NoError(t, <-done)
}

// recordingMonitor captures stage callbacks for assertions.
type recordingMonitor struct {
	stages  []string
	hits    []core.SearchHit
	context string
}

func (m *recordingMonitor) Start(query string)              { m.stages = append(m.stages, "start") }
func (m *recordingMonitor) AfterEmbedding(vector []float32) { m.stages = append(m.stages, "embed") }
func (m *recordingMonitor) AfterRetrieval(hits []core.SearchHit) {
	m.stages = append(m.stages, "retrieve")
	m.hits = hits
}
func (m *recordingMonitor) AfterContextAssembly(contextText string, includedHits int) {
	m.stages = append(m.stages, "context")
	m.context = contextText
}
func (m *recordingMonitor) AfterGeneration(answer string) { m.stages = append(m.stages, "generate") }
func (m *recordingMonitor) Finish(result *core.QueryResult) {
	m.stages = append(m.stages, "finish")
}

func TestProcessQueryWithMonitor_StageOrder(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u1", testChunk("x", 1, 0, 0))
	h.fixedEmbedding([]float32{1, 0, 0})

	monitor := &recordingMonitor{}
	_, err := h.orchestrator.ProcessQueryWithMonitor(context.Background(), "u1", "q", 5, monitor)
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "embed", "retrieve", "context", "generate", "finish"}, monitor.stages)
	assert.Equal(t, "x", monitor.context)
}

func TestProcessQuery_ConcurrentQueries(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.seed(t, "u1", testChunk(fmt.Sprintf("chunk %d", i), float32(i), 1, 0))
	}
	h.fixedEmbedding([]float32{0, 1, 0})

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := h.orchestrator.ProcessQuery(context.Background(), "u1", "q", 3)
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-errs)
	}
}
