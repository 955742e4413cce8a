// Package classify adjusts the severity of corrections and filters no-op entries.
package classify

import (
	"strings"
	"sync"
	"unicode"

	"github.com/jackzampolin/redline/internal/types"
)

// DefaultNoOpPhrases are explanation fragments that mark a line as needing no change.
var DefaultNoOpPhrases = []string{
	"aucune correction nécessaire",
	"aucune correction",
	"pas de correction",
	"aucune modification",
	"aucune erreur",
	"no correction needed",
	"no correction necessary",
	"no changes needed",
}

// Reclassify demotes results whose original and corrected text differ only by
// punctuation, surrounding whitespace, or case to Minor. The service's own label
// for such edits is not trusted. Returns a new slice.
func Reclassify(list []types.CorrectionResult) []types.CorrectionResult {
	out := make([]types.CorrectionResult, len(list))
	for i, r := range list {
		if r.OriginalText != "" && r.CorrectedText != "" && PunctuationOnly(r.OriginalText, r.CorrectedText) {
			r.Category = types.CategoryMinor
		}
		out[i] = r
	}
	return out
}

// PunctuationOnly reports whether a and b are equal once punctuation is removed,
// whitespace is trimmed, and case is folded.
func PunctuationOnly(a, b string) bool {
	return strings.EqualFold(stripPunct(a), stripPunct(b))
}

func stripPunct(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Classifier applies reclassification and no-op filtering with a configurable phrase list.
// Safe for concurrent use; the phrase list can be swapped on config reload.
type Classifier struct {
	mu      sync.RWMutex
	phrases []string
}

// New creates a classifier. A nil phrase list uses DefaultNoOpPhrases;
// an empty non-nil list disables filtering.
func New(noOpPhrases []string) *Classifier {
	c := &Classifier{}
	c.SetPhrases(noOpPhrases)
	return c
}

// SetPhrases replaces the no-op phrase list.
func (c *Classifier) SetPhrases(noOpPhrases []string) {
	if noOpPhrases == nil {
		noOpPhrases = DefaultNoOpPhrases
	}
	phrases := make([]string, 0, len(noOpPhrases))
	for _, p := range noOpPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}

	c.mu.Lock()
	c.phrases = phrases
	c.mu.Unlock()
}

// Phrases returns the active phrase list.
func (c *Classifier) Phrases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.phrases))
	copy(out, c.phrases)
	return out
}

// IsNoOp reports whether the result's explanation says no correction was needed.
func (c *Classifier) IsNoOp(r types.CorrectionResult) bool {
	if r.Explanation == "" {
		return false
	}
	explanation := strings.ToLower(r.Explanation)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.phrases {
		if strings.Contains(explanation, p) {
			return true
		}
	}
	return false
}

// FilterNoOps drops no-op results. Returns a new slice.
func (c *Classifier) FilterNoOps(list []types.CorrectionResult) []types.CorrectionResult {
	out := make([]types.CorrectionResult, 0, len(list))
	for _, r := range list {
		if !c.IsNoOp(r) {
			out = append(out, r)
		}
	}
	return out
}

// Apply reclassifies then filters no-ops.
func (c *Classifier) Apply(list []types.CorrectionResult) []types.CorrectionResult {
	return c.FilterNoOps(Reclassify(list))
}
