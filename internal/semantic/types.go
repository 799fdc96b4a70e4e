// Package semantic provides the chunk-level vector index used to search paper content.
package semantic

import "time"

// PaperHit is a paper found by semantic search, scored by its best-matching chunk.
type PaperHit struct {
	PaperID    string  `json:"id"`
	Similarity float32 `json:"similarity"`
	ChunkID    string  `json:"chunk_id"` // The chunk that ranked the paper
}

// BuildStats contains statistics from re-embedding a collection.
type BuildStats struct {
	PapersIndexed int           `json:"papers_indexed"`
	ChunksIndexed int           `json:"chunks_indexed"`
	Model         string        `json:"model"`
	Duration      time.Duration `json:"duration"`
}
