package semantic

import (
	"math"
	"reflect"
	"testing"

	"github.com/matsen/paperdex/internal/paper"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{1, 0, 0},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0},
			b:        []float32{-1, 0},
			expected: -1.0,
		},
		{
			name:     "similar vectors",
			a:        []float32{1, 1},
			b:        []float32{1, 0},
			expected: 0.7071067, // cos(45 degrees)
		},
		{
			name:     "empty vectors",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
		{
			name:     "different lengths",
			a:        []float32{1, 0},
			b:        []float32{1, 0, 0},
			expected: 0.0,
		},
		{
			name:     "zero vector a",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 0, 0},
			expected: 0.0,
		},
		{
			name:     "zero vector b",
			a:        []float32{1, 0, 0},
			b:        []float32{0, 0, 0},
			expected: 0.0,
		},
		{
			name:     "normalized vectors",
			a:        []float32{0.6, 0.8},
			b:        []float32{0.6, 0.8},
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got-tt.expected)) > 0.0001 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestCosineSimilarity_Commutative(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}

	ab := CosineSimilarity(a, b)
	ba := CosineSimilarity(b, a)

	if math.Abs(float64(ab-ba)) > 0.0001 {
		t.Errorf("CosineSimilarity is not commutative: (%v, %v) = %v, (%v, %v) = %v",
			a, b, ab, b, a, ba)
	}
}

func TestDedupePaperIDs(t *testing.T) {
	hit := func(chunkID, paperID string, sim float32) Hit {
		return Hit{Chunk: paper.Chunk{ID: chunkID, PaperID: paperID}, Similarity: sim}
	}

	tests := []struct {
		name string
		hits []Hit
		want []string
	}{
		{
			name: "no hits",
			hits: nil,
			want: []string{},
		},
		{
			name: "distinct papers keep rank order",
			hits: []Hit{hit("b_0", "b", 0.9), hit("a_3", "a", 0.8)},
			want: []string{"b", "a"},
		},
		{
			name: "later chunks of a ranked paper are dropped",
			hits: []Hit{
				hit("a_1", "a", 0.95),
				hit("b_0", "b", 0.9),
				hit("c_2", "c", 0.7),
				hit("b_4", "b", 0.6),
				hit("a_0", "a", 0.5),
			},
			want: []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupePaperIDs(tt.hits)
			ids := make([]string, len(got))
			for i, h := range got {
				ids[i] = h.PaperID
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("DedupePaperIDs() = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestDedupePaperIDs_KeepsBestChunk(t *testing.T) {
	got := DedupePaperIDs([]Hit{
		{Chunk: paper.Chunk{ID: "a_2", PaperID: "a"}, Similarity: 0.9},
		{Chunk: paper.Chunk{ID: "a_0", PaperID: "a"}, Similarity: 0.4},
	})
	if len(got) != 1 {
		t.Fatalf("DedupePaperIDs() returned %d hits, want 1", len(got))
	}
	if got[0].ChunkID != "a_2" || got[0].Similarity != 0.9 {
		t.Errorf("DedupePaperIDs() = %+v, want best chunk a_2", got[0])
	}
}
