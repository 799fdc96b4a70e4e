// Package embedding turns text into vectors for the chunk index.
package embedding

import "context"

// Embedding is the vector for one piece of text.
type Embedding struct {
	Vector []float32
}

// Dimensions returns the vector length.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}

// Provider generates embeddings from text. The same provider must embed both
// stored chunks and queries for similarity scores to be meaningful.
type Provider interface {
	Embed(ctx context.Context, text string) (Embedding, error)

	// ModelName identifies the model, recorded with the collection.
	ModelName() string

	// Dimensions returns the expected vector length.
	Dimensions() int
}
