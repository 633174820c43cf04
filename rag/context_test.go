package rag

import (
	"strings"
	"testing"

	"github.com/poiesic/ragstore/core"
	"github.com/stretchr/testify/assert"
)

func hitWithText(text string) core.SearchHit {
	return core.SearchHit{Record: core.DocumentRecord{Text: text}}
}

func TestAssembleContext(t *testing.T) {
	t.Run("no hits", func(t *testing.T) {
		text, included := assembleContext(nil, 100)
		assert.Empty(t, text)
		assert.Zero(t, included)
	})

	t.Run("all hits fit", func(t *testing.T) {
		hits := []core.SearchHit{hitWithText("alpha"), hitWithText("beta")}
		text, included := assembleContext(hits, 100)
		assert.Equal(t, "alpha\n\nbeta", text)
		assert.Equal(t, 2, included)
	})

	t.Run("preserves rank order", func(t *testing.T) {
		hits := []core.SearchHit{hitWithText("first"), hitWithText("second"), hitWithText("third")}
		text, _ := assembleContext(hits, 1000)
		assert.True(t, strings.Index(text, "first") < strings.Index(text, "second"))
		assert.True(t, strings.Index(text, "second") < strings.Index(text, "third"))
	})

	t.Run("drops hits past the budget", func(t *testing.T) {
		hits := []core.SearchHit{hitWithText("12345"), hitWithText("67890")}
		// Budget fits the first chunk but not the separator plus the second.
		text, included := assembleContext(hits, 8)
		assert.Equal(t, "12345", text)
		assert.Equal(t, 1, included)
	})

	t.Run("never truncates an included chunk", func(t *testing.T) {
		hits := []core.SearchHit{hitWithText("abcdefghij")}
		text, included := assembleContext(hits, 5)
		assert.Empty(t, text)
		assert.Zero(t, included)
	})

	t.Run("drop is not greedy past a miss", func(t *testing.T) {
		// The second hit does not fit; the third would, but lower-ranked
		// hits are dropped wholesale once the budget is hit.
		hits := []core.SearchHit{hitWithText("aaaa"), hitWithText("bbbbbbbbbb"), hitWithText("c")}
		text, included := assembleContext(hits, 8)
		assert.Equal(t, "aaaa", text)
		assert.Equal(t, 1, included)
	})

	t.Run("zero budget", func(t *testing.T) {
		text, included := assembleContext([]core.SearchHit{hitWithText("x")}, 0)
		assert.Empty(t, text)
		assert.Zero(t, included)
	})

	t.Run("exact fit", func(t *testing.T) {
		hits := []core.SearchHit{hitWithText("abc"), hitWithText("def")}
		text, included := assembleContext(hits, 8)
		assert.Equal(t, "abc\n\ndef", text)
		assert.Equal(t, 2, included)
	})
}
