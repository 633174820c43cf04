// Package retriever provides similarity search within a single loaded partition.
//
// The metric is cosine similarity: the dot product of the two vectors divided
// by the product of their L2 norms, in [-1, 1]. Zero-norm vectors score 0.
// Results are ordered by descending similarity; ties break by ascending
// vector id so search is deterministic.
package retriever

import (
	"math"
	"slices"

	"github.com/poiesic/ragstore/core"
)

// Search returns the min(k, N) most similar chunks to queryVector within the
// partition. An empty partition yields an empty slice, which is success.
// The query vector's dimension must equal the partition's.
func Search(partition *core.Partition, queryVector []float32, k int) ([]core.SearchHit, error) {
	if err := core.ValidateQueryVector(queryVector, partition.Dimension); err != nil {
		return nil, err
	}
	if k <= 0 || partition.Count() == 0 {
		return []core.SearchHit{}, nil
	}

	queryNorm := norm(queryVector)

	hits := make([]core.SearchHit, 0, partition.Count())
	for i := 0; i < partition.Count(); i++ {
		hits = append(hits, core.SearchHit{
			ID:     i,
			Score:  cosine(queryVector, queryNorm, partition.VectorAt(i)),
			Record: partition.Records[i],
		})
	}

	slices.SortFunc(hits, func(a, b core.SearchHit) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return a.ID - b.ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// cosine computes cosine similarity given a precomputed query norm.
func cosine(query []float32, queryNorm float32, vector []float32) float32 {
	vectorNorm := norm(vector)
	if queryNorm == 0 || vectorNorm == 0 {
		return 0
	}
	return dotProduct(query, vector) / (queryNorm * vectorNorm)
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// norm calculates the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}
