package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matsen/paperdex/internal/paper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bitnetAnswer = `{
	"title": "BitNet",
	"summary": "1-bit transformers.",
	"authors": ["Hongyu Wang"],
	"datasets": ["The Pile"],
	"metrics": ["perplexity"],
	"methods": ["BitLinear"],
	"applications": ["edge inference"],
	"limitations": ["language only"],
	"areasOfImprovement": ["vision", "kernels", "scale"]
}`

// newGenerateServer answers /api/generate with answer and records the last request.
func newGenerateServer(t *testing.T, status int, answer string, got *generateRequest) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case apiPathGenerate:
			if got != nil {
				if err := json.NewDecoder(r.Body).Decode(got); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
			}
			if status != http.StatusOK {
				http.Error(w, "model not found", status)
				return
			}
			json.NewEncoder(w).Encode(generateResponse{Response: answer, Done: true})
		case apiPathTags:
			w.Write([]byte(`{"models":[{"name":"llama3.1:8b"},{"name":"nomic-embed-text:latest"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateMetadata(t *testing.T) {
	var req generateRequest
	srv := newGenerateServer(t, http.StatusOK, bitnetAnswer, &req)
	g := NewOllamaGenerator(WithBaseURL(srv.URL))

	meta, err := g.GenerateMetadata(context.Background(), "paper text", "")
	require.NoError(t, err)
	assert.Equal(t, "BitNet", meta.Title)
	assert.Equal(t, []string{"vision", "kernels", "scale"}, meta.AreasOfImprovement)

	assert.Equal(t, DefaultModel, req.Model)
	assert.Equal(t, systemPrompt, req.System)
	assert.Contains(t, req.Prompt, "CONTENT: paper text")
	assert.False(t, req.Stream)
	assert.Equal(t, contextTokens, req.Options.NumCtx)
	assert.Equal(t, 0.0, req.Options.Temperature)
	assert.Equal(t, "object", req.Format["type"])
}

func TestGenerateMetadata_ExplicitModel(t *testing.T) {
	var req generateRequest
	srv := newGenerateServer(t, http.StatusOK, bitnetAnswer, &req)
	g := NewOllamaGenerator(WithBaseURL(srv.URL), WithModel("mistral"))

	_, err := g.GenerateMetadata(context.Background(), "text", "deepseek-r1:7b")
	require.NoError(t, err)
	assert.Equal(t, "deepseek-r1:7b", req.Model)
}

func TestGenerateMetadata_TruncatesPrompt(t *testing.T) {
	var req generateRequest
	srv := newGenerateServer(t, http.StatusOK, bitnetAnswer, &req)
	g := NewOllamaGenerator(WithBaseURL(srv.URL), WithMaxPromptChars(10))

	_, err := g.GenerateMetadata(context.Background(), strings.Repeat("x", 50)+"TAIL", "")
	require.NoError(t, err)
	assert.NotContains(t, req.Prompt, "TAIL")
	assert.Contains(t, req.Prompt, strings.Repeat("x", 10))
}

func TestGenerateMetadata_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		answer string
	}{
		{"server error", http.StatusNotFound, ""},
		{"not json", http.StatusOK, "I cannot help with that."},
		{"truncated json", http.StatusOK, `{"title": "BitNet"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newGenerateServer(t, tt.status, tt.answer, nil)
			g := NewOllamaGenerator(WithBaseURL(srv.URL))

			_, err := g.GenerateMetadata(context.Background(), "text", "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, paper.ErrGeneration))
		})
	}
}

func TestGenerateMetadata_EmptyAnswerIsNotAnError(t *testing.T) {
	srv := newGenerateServer(t, http.StatusOK, `{}`, nil)
	g := NewOllamaGenerator(WithBaseURL(srv.URL))

	meta, err := g.GenerateMetadata(context.Background(), "text", "")
	require.NoError(t, err)
	assert.True(t, meta.IsEmpty())
	assert.NotNil(t, meta.Authors)
}

func TestListModels(t *testing.T) {
	srv := newGenerateServer(t, http.StatusOK, "", nil)
	g := NewOllamaGenerator(WithBaseURL(srv.URL))

	names, err := g.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:8b", "nomic-embed-text:latest"}, names)
}

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantTitle string
		wantErr   bool
	}{
		{"plain json", `{"title": "A"}`, "A", false},
		{"code block", "```json\n{\"title\": \"B\"}\n```", "B", false},
		{"code block no closing fence", "```\n{\"title\": \"C\"}", "C", false},
		{"whitespace", "\n  {\"title\": \"D\"}  \n", "D", false},
		{"garbage", "sorry", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := ParseMetadata(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, meta.Title)
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		text string
		n    int
		want string
	}{
		{"hello", 0, "hello"},
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"αβγδ", 2, "αβ"},
	}
	for _, tt := range tests {
		if got := truncate(tt.text, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
		}
	}
}

func TestWithRateLimit(t *testing.T) {
	assert.Nil(t, NewOllamaGenerator().limiter)
	assert.NotNil(t, NewOllamaGenerator(WithRateLimit(1)).limiter)
	assert.Nil(t, NewOllamaGenerator(WithRateLimit(-1)).limiter)
}
