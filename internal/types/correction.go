// Package types provides shared types used across multiple packages.
// This package has no dependencies on other redline packages to avoid import cycles.
package types

import "strings"

// ScannedItem is one correctable unit of text harvested from a document.
// Items are immutable once created.
type ScannedItem struct {
	Text     string `json:"text"`
	SourceID string `json:"source_id"`
}

// ItemGroup is an ordered run of items that share an originating context.
// Insertion order is the processing and display order.
type ItemGroup struct {
	Key   string        `json:"key"`
	Items []ScannedItem `json:"items"`
}

// Chunk is an ordered, size-bounded slice of a group's items sent in one request.
type Chunk struct {
	// Index is the 0-based position of the chunk within its group.
	Index int
	Items []ScannedItem
}

// Len returns the number of items in the chunk.
func (c Chunk) Len() int {
	return len(c.Items)
}

// Text joins the chunk's item texts with newlines.
func (c Chunk) Text() string {
	parts := make([]string, len(c.Items))
	for i, it := range c.Items {
		parts[i] = it.Text
	}
	return strings.Join(parts, "\n")
}

// SourceIDForLine maps a 1-based line number back to the item's SourceID.
// Returns false when the line is out of range.
func (c Chunk) SourceIDForLine(line int) (string, bool) {
	if line < 1 || line > len(c.Items) {
		return "", false
	}
	return c.Items[line-1].SourceID, true
}

// Category is the severity of a correction.
type Category string

const (
	// CategoryMinor denotes punctuation or whitespace-only changes.
	CategoryMinor Category = "Minor"
	// CategoryError denotes substantive grammar or spelling changes.
	CategoryError Category = "Error"
)

// ParseCategory converts a service category label to a Category.
// Labels starting with "min" (Minor, Mineur, Mineure) are Minor; anything else is Error.
func ParseCategory(s string) Category {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "min") {
		return CategoryMinor
	}
	return CategoryError
}

// CorrectionResult is a single correction for one line of a chunk.
type CorrectionResult struct {
	// LineNumber is 1-based and local to the chunk. Zero marks a synthetic result.
	LineNumber    int      `json:"line_number"`
	OriginalText  string   `json:"original_text"`
	CorrectedText string   `json:"corrected_text"`
	Explanation   string   `json:"explanation"`
	Category      Category `json:"category"`
	// SourceID is empty until the result is mapped back to its item.
	SourceID string `json:"source_id,omitempty"`
}

// IsSynthetic reports whether the result was fabricated by the pipeline
// to carry a failure rather than returned by the correction service.
func (r CorrectionResult) IsSynthetic() bool {
	return r.LineNumber == 0 && r.Category == CategoryError
}

// NewErrorResult builds a synthetic Error result carrying a failure description.
func NewErrorResult(originalText, explanation string) CorrectionResult {
	return CorrectionResult{
		LineNumber:   0,
		OriginalText: originalText,
		Explanation:  explanation,
		Category:     CategoryError,
	}
}

// Results maps a group key to its ordered corrections.
type Results map[string][]CorrectionResult

// Count returns the total number of corrections across all groups.
func (r Results) Count() int {
	n := 0
	for _, list := range r {
		n += len(list)
	}
	return n
}
