package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		id1 := IDFromContent("the eiffel tower is in paris")
		id2 := IDFromContent("the eiffel tower is in paris")
		assert.Equal(t, id1, id2)
	})

	t.Run("different content different id", func(t *testing.T) {
		id1 := IDFromContent("first chunk")
		id2 := IDFromContent("second chunk")
		assert.NotEqual(t, id1, id2)
	})
}

func testChunk(text string, vector ...float32) Chunk {
	return Chunk{
		Vector: vector,
		Record: DocumentRecord{
			Filename:   "doc.txt",
			ChunkIndex: 0,
			Text:       text,
		},
	}
}

func TestPartitionAppend(t *testing.T) {
	t.Run("appends in order", func(t *testing.T) {
		p := NewPartition(2)
		next, err := p.Append([]Chunk{
			testChunk("one", 1, 0),
			testChunk("two", 0, 1),
		})
		require.NoError(t, err)

		assert.Equal(t, 2, next.Count())
		assert.Equal(t, []float32{1, 0, 0, 1}, next.Vectors)
		assert.Equal(t, "one", next.Records[0].Text)
		assert.Equal(t, "two", next.Records[1].Text)
		assert.Equal(t, []float32{0, 1}, next.VectorAt(1))
	})

	t.Run("vector count equals record count", func(t *testing.T) {
		p := NewPartition(3)
		next, err := p.Append([]Chunk{
			testChunk("a", 1, 2, 3),
			testChunk("b", 4, 5, 6),
			testChunk("c", 7, 8, 9),
		})
		require.NoError(t, err)
		assert.Equal(t, len(next.Records)*next.Dimension, len(next.Vectors))
	})

	t.Run("receiver untouched", func(t *testing.T) {
		p := NewPartition(2)
		p, err := p.Append([]Chunk{testChunk("base", 1, 1)})
		require.NoError(t, err)

		next, err := p.Append([]Chunk{testChunk("more", 2, 2)})
		require.NoError(t, err)

		assert.Equal(t, 1, p.Count())
		assert.Equal(t, 2, next.Count())
	})

	t.Run("dimension mismatch is all-or-nothing", func(t *testing.T) {
		p := NewPartition(2)
		_, err := p.Append([]Chunk{
			testChunk("good", 1, 0),
			testChunk("bad", 1, 0, 0),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
		assert.Equal(t, 0, p.Count())
	})

	t.Run("assigns content ids", func(t *testing.T) {
		p := NewPartition(1)
		next, err := p.Append([]Chunk{testChunk("hash me", 0.5)})
		require.NoError(t, err)
		assert.Equal(t, IDFromContent("hash me"), next.Records[0].ContentID)
	})

	t.Run("empty append is a no-op copy", func(t *testing.T) {
		p := NewPartition(2)
		next, err := p.Append(nil)
		require.NoError(t, err)
		assert.Equal(t, 0, next.Count())
	})
}
