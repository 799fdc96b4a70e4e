// Package storage handles paper metadata persistence in SQLite, with JSONL export.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/matsen/paperdex/internal/paper"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// ReadAll reads all papers from a JSONL file.
// A missing file yields nil; an existing file with no papers yields an empty slice.
func ReadAll(path string) ([]paper.Paper, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Missing file reads as empty
		}
		return nil, fmt.Errorf("opening papers file: %w", err)
	}
	defer f.Close()

	papers := []paper.Paper{}
	scanner := bufio.NewScanner(f)

	// Summaries can be long
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var p paper.Paper
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		p.Metadata = p.Metadata.Normalize()
		papers = append(papers, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading papers file: %w", err)
	}

	return papers, nil
}

// WriteAll writes all papers to a JSONL file, replacing existing content.
func WriteAll(path string, papers []paper.Paper) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating papers file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, p := range papers {
		p.Metadata = p.Metadata.Normalize()
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding paper %d: %w", i, err)
		}

		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing paper %d: %w", i, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing papers file: %w", err)
	}
	return nil
}
