// Package pdf extracts text, chunks and identifiers from PDF papers.
package pdf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/matsen/paperdex/internal/paper"
)

// ErrNoText indicates the PDF has no extractable text layer (e.g. a scanned document).
var ErrNoText = errors.New("no extractable text")

// Reader turns PDF files into text and chunks for ingestion.
type Reader struct {
	chunker *Chunker
}

// NewReader creates a reader that chunks with the given chunker, or a default one if nil.
func NewReader(chunker *Chunker) *Reader {
	if chunker == nil {
		chunker = NewChunker()
	}
	return &Reader{chunker: chunker}
}

// ExtractText returns the plain text of every page, separated by newlines.
func (r *Reader) ExtractText(path string) (string, error) {
	pages, err := readPages(path, 0)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", paper.ErrExtraction, path, err)
	}

	text := strings.Join(pages, "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s: %w", paper.ErrExtraction, path, ErrNoText)
	}
	return text, nil
}

// ChunkDocument splits the PDF into ordered chunks tagged with page and offset.
func (r *Reader) ChunkDocument(path string) ([]paper.ChunkInput, error) {
	pages, err := readPages(path, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", paper.ErrChunking, path, err)
	}

	chunks := r.chunker.SplitPages(pages)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s: %w", paper.ErrChunking, path, ErrNoText)
	}
	return chunks, nil
}

// ExtractDOI searches the first pages of the PDF for a DOI.
// Returns an empty string without error if none is found.
func (r *Reader) ExtractDOI(path string) (string, error) {
	// DOI is usually on the first page
	pages, err := readPages(path, 3)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", paper.ErrExtraction, path, err)
	}

	for _, text := range pages {
		if doi := findDOI(text); doi != "" {
			return doi, nil
		}
	}
	return "", nil
}

// readPages returns the plain text of up to maxPages pages (all if maxPages <= 0).
// Pages that cannot be decoded yield empty text so page numbering stays aligned.
func readPages(path string, maxPages int) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}

	pages := make([]string, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages, nil
}
