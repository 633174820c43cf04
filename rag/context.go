package rag

import (
	"strings"

	"github.com/poiesic/ragstore/core"
)

// chunkSeparator joins chunk texts in the assembled context.
const chunkSeparator = "\n\n"

// assembleContext concatenates retrieved chunk texts in rank order up to
// maxBytes. A hit whose text would push the context past the budget is
// dropped, along with every lower-ranked hit after it. Included texts are
// never truncated mid-chunk.
//
// Returns the assembled context and the number of hits included.
func assembleContext(hits []core.SearchHit, maxBytes int) (string, int) {
	if len(hits) == 0 || maxBytes <= 0 {
		return "", 0
	}

	var b strings.Builder
	included := 0
	for _, hit := range hits {
		need := len(hit.Record.Text)
		if included > 0 {
			need += len(chunkSeparator)
		}
		if b.Len()+need > maxBytes {
			break
		}
		if included > 0 {
			b.WriteString(chunkSeparator)
		}
		b.WriteString(hit.Record.Text)
		included++
	}

	return b.String(), included
}
