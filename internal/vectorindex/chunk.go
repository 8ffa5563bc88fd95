package vectorindex

import (
	"math"
	"strconv"
)

// ChunkCount returns the authoritative chunk count for content of length n
// under the fixed (size, overlap) contract (spec.md §4.2, §9). The slicer in
// ChunkText must produce exactly this many chunks for every n.
func ChunkCount(n int) int {
	if n <= 0 {
		return 1
	}
	stride := ChunkSize - ChunkOverlap
	count := int(math.Ceil(float64(n-ChunkOverlap) / float64(stride)))
	if count < 1 {
		return 1
	}
	return count
}

// ChunkText splits content into the deterministic chunk sequence
// C[0:size], C[size-overlap:2*size-overlap], ... with the final chunk
// possibly shorter. Always returns at least one chunk, even for empty
// content, so chunk IDs stay stable across re-ingests of a file that
// shrinks to nothing.
func ChunkText(content string) []string {
	n := len(content)
	count := ChunkCount(n)
	chunks := make([]string, 0, count)
	stride := ChunkSize - ChunkOverlap

	for i := 0; i < count; i++ {
		start := i * stride
		if start > n {
			start = n
		}
		end := start + ChunkSize
		if end > n {
			end = n
		}
		chunks = append(chunks, content[start:end])
	}
	return chunks
}

// ChunkID returns the stable chunk identifier for the i-th chunk of file_id.
func ChunkID(fileID string, i int) string {
	return fileID + ":chunk:" + strconv.Itoa(i)
}
