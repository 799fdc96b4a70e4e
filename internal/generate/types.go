package generate

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system,omitempty"`
	Prompt  string          `json:"prompt"`
	Format  map[string]any  `json:"format,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

// generateOptions holds generation parameters. Temperature is always sent, zero included.
type generateOptions struct {
	NumCtx      int     `json:"num_ctx"`
	Temperature float64 `json:"temperature"`
}

// generateResponse is the Ollama /api/generate response format.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// tagsResponse is the response from the Ollama tags API.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

var stringList = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}

// metadataSchema constrains the model output to the paper metadata fields.
var metadataSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":              map[string]any{"type": "string"},
		"summary":            map[string]any{"type": "string"},
		"authors":            stringList,
		"datasets":           stringList,
		"metrics":            stringList,
		"methods":            stringList,
		"applications":       stringList,
		"limitations":        stringList,
		"areasOfImprovement": stringList,
	},
	"required": []string{
		"title", "summary", "authors", "datasets", "metrics",
		"methods", "applications", "limitations", "areasOfImprovement",
	},
}
