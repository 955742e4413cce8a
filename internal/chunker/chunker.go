// Package chunker splits ordered items into size-bounded chunks.
package chunker

import (
	"unicode/utf8"

	"github.com/jackzampolin/redline/internal/types"
)

// DefaultMaxChars is the default per-chunk character budget.
const DefaultMaxChars = 3000

// Split greedily packs items into chunks whose total length stays within maxChars.
// Each item costs its character count plus one for the line separator.
// An item is never split: a single oversized item forms its own chunk.
// maxChars < 1 is treated as 1.
func Split(items []types.ScannedItem, maxChars int) []types.Chunk {
	if len(items) == 0 {
		return nil
	}
	if maxChars < 1 {
		maxChars = 1
	}

	var chunks []types.Chunk
	var current []types.ScannedItem
	size := 0

	for _, item := range items {
		cost := ItemCost(item)
		if len(current) > 0 && size+cost > maxChars {
			chunks = append(chunks, types.Chunk{Index: len(chunks), Items: current})
			current = nil
			size = 0
		}
		current = append(current, item)
		size += cost
	}
	if len(current) > 0 {
		chunks = append(chunks, types.Chunk{Index: len(chunks), Items: current})
	}
	return chunks
}

// Count returns the number of chunks Split would produce.
func Count(items []types.ScannedItem, maxChars int) int {
	return len(Split(items, maxChars))
}

// ItemCost is the budget an item consumes inside a chunk.
func ItemCost(item types.ScannedItem) int {
	return utf8.RuneCountInString(item.Text) + 1
}
