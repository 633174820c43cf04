package ingestion

import "strings"

const (
	// DefaultChunkSize is the chunk length in runes when none is configured.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of runes shared between adjacent
	// chunks, preserving context across chunk boundaries.
	DefaultChunkOverlap = 200
)

// ChunkText splits text into fixed-size rune windows with the given overlap.
// The window advances by size-overlap runes each step. Whitespace-only
// windows are skipped. Counting runes rather than bytes keeps multi-byte
// characters intact at chunk boundaries.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil
	}

	runes := []rune(text)
	step := size - overlap

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[i:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
