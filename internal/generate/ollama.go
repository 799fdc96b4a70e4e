// Package generate produces structured paper metadata with a local language model.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matsen/paperdex/internal/paper"
	"golang.org/x/time/rate"
)

const (
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultModel is the generation model used when the caller names none.
	DefaultModel = "llama3.1:8b"

	// DefaultTimeout bounds a single generation request. Local models are slow on long papers.
	DefaultTimeout = 5 * time.Minute

	// DefaultMaxPromptChars caps the paper text sent to the model.
	// ~12000 characters is ~3000 tokens, inside a 4096-token context with room for the answer.
	DefaultMaxPromptChars = 12000

	// contextTokens is the model context window requested per call.
	contextTokens = 4096

	apiPathGenerate = "/api/generate"
	apiPathTags     = "/api/tags"

	systemPrompt = "You are a research assistant that has been tasked with generating structured metadata for a research paper."
)

// OllamaGenerator generates metadata through the Ollama generate API
// with the response constrained to the metadata JSON schema.
type OllamaGenerator struct {
	baseURL        string
	model          string
	maxPromptChars int
	client         *http.Client
	limiter        *rate.Limiter
}

// Option configures an OllamaGenerator.
type Option func(*OllamaGenerator)

// WithBaseURL sets the Ollama API base URL.
func WithBaseURL(url string) Option {
	return func(g *OllamaGenerator) {
		g.baseURL = url
	}
}

// WithModel sets the default generation model.
func WithModel(model string) Option {
	return func(g *OllamaGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(g *OllamaGenerator) {
		g.client.Timeout = timeout
	}
}

// WithMaxPromptChars sets how much paper text is sent to the model. Zero or negative sends all of it.
func WithMaxPromptChars(n int) Option {
	return func(g *OllamaGenerator) {
		g.maxPromptChars = n
	}
}

// WithRateLimit caps generation requests per second. Zero or negative disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(g *OllamaGenerator) {
		if perSecond <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewOllamaGenerator creates a generator with the given options.
func NewOllamaGenerator(opts ...Option) *OllamaGenerator {
	g := &OllamaGenerator{
		baseURL:        DefaultOllamaURL,
		model:          DefaultModel,
		maxPromptChars: DefaultMaxPromptChars,
		client:         &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the default generation model.
func (g *OllamaGenerator) Model() string {
	return g.model
}

// GenerateMetadata asks the model for structured metadata about the paper text.
// An empty model name uses the generator's default. Any failure wraps paper.ErrGeneration;
// a successful call whose answer is empty returns empty metadata, not an error.
func (g *OllamaGenerator) GenerateMetadata(ctx context.Context, text, model string) (paper.Metadata, error) {
	if model == "" {
		model = g.model
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return paper.Metadata{}, fmt.Errorf("%w: rate limiter: %w", paper.ErrGeneration, err)
		}
	}

	body, err := json.Marshal(generateRequest{
		Model:  model,
		System: systemPrompt,
		Prompt: buildPrompt(truncate(text, g.maxPromptChars)),
		Format: metadataSchema,
		Stream: false,
		Options: generateOptions{
			NumCtx:      contextTokens,
			Temperature: 0,
		},
	})
	if err != nil {
		return paper.Metadata{}, fmt.Errorf("%w: marshaling request: %w", paper.ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+apiPathGenerate, bytes.NewReader(body))
	if err != nil {
		return paper.Metadata{}, fmt.Errorf("%w: creating request: %w", paper.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return paper.Metadata{}, fmt.Errorf("%w: sending request: %w", paper.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return paper.Metadata{}, fmt.Errorf("%w: ollama returned status %d: %s",
			paper.ErrGeneration, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return paper.Metadata{}, fmt.Errorf("%w: decoding response: %w", paper.ErrGeneration, err)
	}
	if result.Error != "" {
		return paper.Metadata{}, fmt.Errorf("%w: %s", paper.ErrGeneration, result.Error)
	}

	meta, err := ParseMetadata(result.Response)
	if err != nil {
		return paper.Metadata{}, fmt.Errorf("%w: %w", paper.ErrGeneration, err)
	}
	return meta, nil
}

// ListModels returns the names of all models installed in Ollama.
func (g *OllamaGenerator) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+apiPathTags, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama is not running: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// ParseMetadata decodes a model answer into metadata, tolerating a markdown code fence.
func ParseMetadata(response string) (paper.Metadata, error) {
	text := strings.TrimSpace(response)

	// Handle markdown code blocks
	if strings.HasPrefix(text, "```") {
		text = extractFromCodeBlock(text)
	}

	var meta paper.Metadata
	if err := json.Unmarshal([]byte(text), &meta); err != nil {
		return paper.Metadata{}, fmt.Errorf("parsing model response as JSON: %w", err)
	}
	return meta.Normalize(), nil
}

// extractFromCodeBlock extracts content from a markdown code block.
func extractFromCodeBlock(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}

	end := len(lines)
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		end = len(lines) - 1
	}

	return strings.Join(lines[1:end], "\n")
}

func buildPrompt(text string) string {
	return fmt.Sprintf(`Generate metadata for the following research paper in JSON format.
Use exact extracts/sections/titles/names where possible.
Validate the output for accuracy and completeness.
List at least 3 specific areas of improvement that could lead to innovation and how each can be achieved.

CONTENT: %s`, text)
}

// truncate cuts text to at most n characters on a rune boundary.
func truncate(text string, n int) string {
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
