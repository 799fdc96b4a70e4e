package ingest

import (
	"fmt"
	"strings"
)

// Stage names the ingestion step that failed.
type Stage string

// Ingestion stages in the order they run.
const (
	StageExtraction Stage = "extraction"
	StageChunking   Stage = "chunking"
	StageGeneration Stage = "generation"
	StageStorage    Stage = "storage"
	StageIndexing   Stage = "indexing"
)

// Error reports which paper and which stage of its ingestion failed.
// The wrapped error carries the paper error kind, so errors.Is(err, paper.ErrGeneration) works.
type Error struct {
	Stage   Stage
	PaperID string // Empty if the failure happened before the record was created
	Source  string // File path or caller-provided label, if any

	// Orphaned is set when rolling back a partially ingested paper also failed,
	// so a metadata row or chunks for PaperID may remain. Audit reports them.
	Orphaned bool

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("ingesting")
	if e.Source != "" {
		fmt.Fprintf(&b, " %s", e.Source)
	}
	fmt.Fprintf(&b, ": %s stage", e.Stage)
	if e.PaperID != "" {
		fmt.Fprintf(&b, " (paper %s", e.PaperID)
		if e.Orphaned {
			b.WriteString(", orphaned")
		}
		b.WriteString(")")
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}
