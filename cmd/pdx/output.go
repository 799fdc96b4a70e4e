package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matsen/paperdex/internal/paper"
)

// Constants for output formatting.
const (
	SearchTitleMaxLen = 70 // Used in search result summaries
	ListTitleMaxLen   = 60 // Used in list command output

	TextWrapWidth = 68

	// progressBarWidth is the width in characters for terminal progress display.
	progressBarWidth = 30
	// progressLineClearWidth is wider than the bar plus its counters.
	progressLineClearWidth = 50
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	_ = logger.Sync()
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Path   string `json:"path,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// PaperSummary is the list view of a paper.
type PaperSummary struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Indexed bool     `json:"indexed"`
}

func summarize(papers []paper.Paper) []PaperSummary {
	out := make([]PaperSummary, len(papers))
	for i, p := range papers {
		out[i] = PaperSummary{ID: p.ID, Title: p.Title, Authors: p.Authors, Indexed: p.Indexed}
	}
	return out
}

// printPaperHuman prints every metadata field of a paper.
func printPaperHuman(p paper.Paper) {
	fmt.Printf("%s\n", p.Title)
	fmt.Printf("ID: %s\n", p.ID)
	if len(p.Authors) > 0 {
		fmt.Printf("Authors: %s\n", strings.Join(p.Authors, ", "))
	}
	if p.Link != "" {
		fmt.Printf("Link: %s\n", p.Link)
	}
	if !p.Indexed {
		fmt.Printf("Status: not indexed (run 'pdx check')\n")
	}
	if p.Summary != "" {
		fmt.Printf("\n%s\n", wrapText(p.Summary, TextWrapWidth, ""))
	}

	sections := []struct {
		name  string
		items []string
	}{
		{"Datasets", p.Datasets},
		{"Metrics", p.Metrics},
		{"Methods", p.Methods},
		{"Applications", p.Applications},
		{"Limitations", p.Limitations},
		{"Areas of improvement", p.AreasOfImprovement},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		fmt.Printf("\n%s:\n", s.name)
		for _, item := range s.items {
			fmt.Printf("  - %s\n", wrapText(item, TextWrapWidth-4, "    "))
		}
	}
}

// truncateString truncates a string to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// wrapText wraps text to the specified width with indentation on subsequent lines.
func wrapText(text string, width int, indent string) string {
	if len(text) <= width {
		return text
	}

	var lines []string
	var currentLine strings.Builder

	for _, word := range strings.Fields(text) {
		if currentLine.Len() == 0 {
			currentLine.WriteString(word)
		} else if currentLine.Len()+1+len(word) <= width {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
		}
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return strings.Join(lines, "\n"+indent)
}

// formatAuthorsShort formats up to maxCount authors, then "et al.".
func formatAuthorsShort(authors []string, maxCount int) string {
	if len(authors) == 0 {
		return "(no authors)"
	}
	if len(authors) <= maxCount {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:maxCount], ", ") + " et al."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

// buildProgressBar creates a progress bar string of the given width.
// Returns a string like "[=====>    ]" showing progress.
func buildProgressBar(current, total, width int) string {
	if total == 0 {
		return strings.Repeat(" ", width)
	}
	filled := (width * current) / total
	if filled >= width {
		return strings.Repeat("=", width)
	}
	return strings.Repeat("=", filled) + ">" + strings.Repeat(" ", width-filled-1)
}

// printProgress prints a progress bar to stderr.
func printProgress(current, total int) {
	if total == 0 {
		return
	}
	pct := float64(current) / float64(total) * 100
	bar := buildProgressBar(current, total, progressBarWidth)
	fmt.Fprintf(os.Stderr, "\r[%s] %d/%d (%.0f%%)", bar, current, total, pct)
}

// clearProgress erases the progress line.
func clearProgress() {
	fmt.Fprintf(os.Stderr, "\r%*s\r", progressLineClearWidth, "")
}

// containsModel reports whether an Ollama model list includes model,
// treating an untagged name as ":latest".
func containsModel(models []string, model string) bool {
	for _, m := range models {
		if m == model || m == model+":latest" {
			return true
		}
	}
	return false
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
