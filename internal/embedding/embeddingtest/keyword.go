// Package embeddingtest provides a deterministic embedding provider for tests.
package embeddingtest

import (
	"context"
	"errors"
	"strings"

	"github.com/matsen/paperdex/internal/embedding"
)

// ErrInjected is returned by KeywordProvider when text contains FailOn.
var ErrInjected = errors.New("injected embedding failure")

var _ embedding.Provider = (*KeywordProvider)(nil)

// KeywordProvider embeds text as keyword counts over a fixed vocabulary,
// so texts sharing words are similar and texts sharing none are orthogonal.
type KeywordProvider struct {
	Vocabulary []string
	Model      string
	FailOn     string // Embed fails for any text containing this substring, if set
	Calls      int
}

// NewKeywordProvider creates a provider over the given vocabulary.
func NewKeywordProvider(vocabulary ...string) *KeywordProvider {
	return &KeywordProvider{Vocabulary: vocabulary, Model: "keyword-test"}
}

// Embed implements embedding.Provider.
func (p *KeywordProvider) Embed(ctx context.Context, text string) (embedding.Embedding, error) {
	p.Calls++
	if err := ctx.Err(); err != nil {
		return embedding.Embedding{}, err
	}
	if p.FailOn != "" && strings.Contains(text, p.FailOn) {
		return embedding.Embedding{}, ErrInjected
	}

	lower := strings.ToLower(text)
	vec := make([]float32, len(p.Vocabulary))
	for i, word := range p.Vocabulary {
		vec[i] = float32(strings.Count(lower, strings.ToLower(word)))
	}
	return embedding.Embedding{Vector: vec}, nil
}

// ModelName implements embedding.Provider.
func (p *KeywordProvider) ModelName() string {
	return p.Model
}

// Dimensions implements embedding.Provider.
func (p *KeywordProvider) Dimensions() int {
	return len(p.Vocabulary)
}
