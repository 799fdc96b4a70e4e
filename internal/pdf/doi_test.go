package pdf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matsen/paperdex/internal/paper"
)

func TestFindDOI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "doi: 10.1038/nature12373", "10.1038/nature12373"},
		{"trailing period", "See 10.1093/molbev/msu300.", "10.1093/molbev/msu300"},
		{"in url", "https://doi.org/10.1101/2023.01.01.522401)", "10.1101/2023.01.01.522401"},
		{"first of many", "10.1000/abc123 and 10.2000/def456", "10.1000/abc123"},
		{"none", "no identifiers here", ""},
		{"registrant too short", "10.12/abcdef", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findDOI(tt.text); got != tt.want {
				t.Errorf("findDOI(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsValidDOI(t *testing.T) {
	tests := []struct {
		doi  string
		want bool
	}{
		{"10.1038/nature12373", true},
		{"10.1000/", false},
		{"11.1038/nature", false},
		{"10.1", false},
	}
	for _, tt := range tests {
		if got := isValidDOI(tt.doi); got != tt.want {
			t.Errorf("isValidDOI(%q) = %v, want %v", tt.doi, got, tt.want)
		}
	}
}

func TestDOILink(t *testing.T) {
	if got := DOILink("10.1038/nature12373"); got != "https://doi.org/10.1038/nature12373" {
		t.Errorf("DOILink() = %q", got)
	}
	if got := DOILink(""); got != "" {
		t.Errorf("DOILink(\"\") = %q, want empty", got)
	}
}

func TestReader_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0644); err != nil {
		t.Fatal(err)
	}
	r := NewReader(nil)

	if _, err := r.ExtractText(path); !errors.Is(err, paper.ErrExtraction) {
		t.Errorf("ExtractText() error = %v, want ErrExtraction", err)
	}
	if _, err := r.ChunkDocument(path); !errors.Is(err, paper.ErrChunking) {
		t.Errorf("ChunkDocument() error = %v, want ErrChunking", err)
	}
	if _, err := r.ExtractDOI(path); !errors.Is(err, paper.ErrExtraction) {
		t.Errorf("ExtractDOI() error = %v, want ErrExtraction", err)
	}
}

func TestReader_MissingFile(t *testing.T) {
	r := NewReader(NewChunker())
	_, err := r.ExtractText(filepath.Join(t.TempDir(), "missing.pdf"))
	if !errors.Is(err, paper.ErrExtraction) {
		t.Errorf("ExtractText() error = %v, want ErrExtraction", err)
	}
}
