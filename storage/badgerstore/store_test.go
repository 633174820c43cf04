package badgerstore

import (
	"context"
	"testing"

	"github.com/poiesic/ragstore/core"
	"github.com/poiesic/ragstore/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func buildPartition(t *testing.T, dimension int, texts ...string) *core.Partition {
	t.Helper()
	chunks := make([]core.Chunk, len(texts))
	for i, text := range texts {
		vector := make([]float32, dimension)
		vector[i%dimension] = 1
		chunks[i] = core.Chunk{
			Vector: vector,
			Record: core.DocumentRecord{Filename: "f.txt", ChunkIndex: i, Text: text},
		}
	}
	p, err := core.NewPartition(dimension).Append(chunks)
	require.NoError(t, err)
	return p
}

func TestLoad_NotPresent(t *testing.T) {
	s := newMemoryStore(t)
	_, err := s.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotPresent)
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	p := buildPartition(t, 3, "alpha", "beta", "gamma")
	require.NoError(t, s.Persist(ctx, "u1", p))

	loaded, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, p.Dimension, loaded.Dimension)
	assert.Equal(t, p.Vectors, loaded.Vectors)
	require.Equal(t, p.Count(), loaded.Count())
	for i := range p.Records {
		assert.Equal(t, p.Records[i].Text, loaded.Records[i].Text)
		assert.Equal(t, p.Records[i].ContentID, loaded.Records[i].ContentID)
	}
}

func TestPersist_GrowsAcrossAppends(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	p := buildPartition(t, 2, "one")
	require.NoError(t, s.Persist(ctx, "u1", p))

	p, err := p.Append([]core.Chunk{{
		Vector: []float32{0, 1},
		Record: core.DocumentRecord{Filename: "f.txt", ChunkIndex: 1, Text: "two"},
	}})
	require.NoError(t, err)
	require.NoError(t, s.Persist(ctx, "u1", p))

	loaded, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Count())
	assert.Equal(t, "two", loaded.Records[1].Text)
}

func TestTenantsDoNotInterleave(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Persist(ctx, "u1", buildPartition(t, 2, "u1 chunk")))
	require.NoError(t, s.Persist(ctx, "u2", buildPartition(t, 2, "u2 chunk a", "u2 chunk b")))

	p1, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	p2, err := s.Load(ctx, "u2")
	require.NoError(t, err)

	assert.Equal(t, 1, p1.Count())
	assert.Equal(t, 2, p2.Count())
	assert.Equal(t, "u1 chunk", p1.Records[0].Text)
}

func TestPersistLoad_EmptyPartition(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Persist(ctx, "u1", core.NewPartition(4)))

	loaded, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Count())
	assert.Equal(t, 4, loaded.Dimension)
}

func TestStore_RejectsUnsafeTenantIDs(t *testing.T) {
	s := newMemoryStore(t)
	_, err := s.Load(context.Background(), "../escape")
	assert.ErrorIs(t, err, core.ErrInvalidTenantID)
}
