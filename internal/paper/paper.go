// Package paper defines the core domain types for ingested research papers.
package paper

import "fmt"

// Metadata holds the structured fields of a paper, everything except its identity.
type Metadata struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Authors []string `json:"authors"`
	Link    string   `json:"link"` // Source URL, may be empty

	// Categorized facts produced by metadata generation
	Datasets           []string `json:"datasets"`
	Metrics            []string `json:"metrics"`
	Methods            []string `json:"methods"`
	Applications       []string `json:"applications"`
	Limitations        []string `json:"limitations"`
	AreasOfImprovement []string `json:"areasOfImprovement"`
}

// Paper represents one ingested document.
type Paper struct {
	ID string `json:"id"` // Generated at ingestion, immutable
	Metadata

	// Indexed is set once the paper's full chunk set is stored in the vector index.
	Indexed bool `json:"indexed"`
}

// Normalize replaces absent lists with empty ones so stored records never carry null fields.
func (m Metadata) Normalize() Metadata {
	m.Authors = orEmpty(m.Authors)
	m.Datasets = orEmpty(m.Datasets)
	m.Metrics = orEmpty(m.Metrics)
	m.Methods = orEmpty(m.Methods)
	m.Applications = orEmpty(m.Applications)
	m.Limitations = orEmpty(m.Limitations)
	m.AreasOfImprovement = orEmpty(m.AreasOfImprovement)
	return m
}

// IsEmpty reports whether no field carries any content.
func (m Metadata) IsEmpty() bool {
	return m.Title == "" && m.Summary == "" && m.Link == "" &&
		len(m.Authors) == 0 && len(m.Datasets) == 0 && len(m.Metrics) == 0 &&
		len(m.Methods) == 0 && len(m.Applications) == 0 && len(m.Limitations) == 0 &&
		len(m.AreasOfImprovement) == 0
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ChunkInput is a slice of paper text as produced by the chunking collaborator.
type ChunkInput struct {
	Text   string `json:"text"`
	Page   int    `json:"page"`   // 1-based page the chunk starts on, 0 if unknown
	Offset int    `json:"offset"` // Character offset of the chunk within its page
}

// Chunk is a stored, embedded chunk belonging to one paper.
type Chunk struct {
	ID        string    `json:"chunk_id"`
	PaperID   string    `json:"paper_id"`
	Ordinal   int       `json:"ordinal"`
	Text      string    `json:"text"`
	Page      int       `json:"page"`
	Offset    int       `json:"offset"`
	Embedding []float32 `json:"-"`
}

// ChunkID derives the chunk identifier from its paper and position.
func ChunkID(paperID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", paperID, ordinal)
}
