package paper

import "errors"

// Error kinds shared by the stores, the ingestion coordinator and the retrieval engine.
// Callers classify failures with errors.Is.
var (
	// ErrExtraction indicates the PDF text could not be read.
	ErrExtraction = errors.New("text extraction failed")

	// ErrChunking indicates the document could not be split into chunks.
	ErrChunking = errors.New("document chunking failed")

	// ErrGeneration indicates the metadata language model call failed.
	ErrGeneration = errors.New("metadata generation failed")

	// ErrEmbedding indicates an embedding could not be computed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStorage indicates a failure in either store.
	ErrStorage = errors.New("storage error")

	// ErrSearch indicates a semantic search could not be completed.
	ErrSearch = errors.New("search failed")

	// ErrNotFound indicates the paper does not exist.
	ErrNotFound = errors.New("paper not found")
)
