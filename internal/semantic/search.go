package semantic

import "math"

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denominator := float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB)))
	if denominator == 0 {
		return 0
	}

	return dot / denominator
}

// DedupePaperIDs maps ranked chunk hits to their owning papers, keeping the
// first (best) occurrence of each paper and preserving rank order.
func DedupePaperIDs(hits []Hit) []PaperHit {
	seen := make(map[string]bool, len(hits))
	out := make([]PaperHit, 0, len(hits))
	for _, h := range hits {
		if seen[h.Chunk.PaperID] {
			continue
		}
		seen[h.Chunk.PaperID] = true
		out = append(out, PaperHit{
			PaperID:    h.Chunk.PaperID,
			Similarity: h.Similarity,
			ChunkID:    h.Chunk.ID,
		})
	}
	return out
}
