package chunker

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/jackzampolin/redline/internal/types"
)

func items(texts ...string) []types.ScannedItem {
	out := make([]types.ScannedItem, len(texts))
	for i, s := range texts {
		out[i] = types.ScannedItem{Text: s, SourceID: fmt.Sprintf("id-%d", i)}
	}
	return out
}

func flatten(chunks []types.Chunk) []types.ScannedItem {
	var out []types.ScannedItem
	for _, c := range chunks {
		out = append(out, c.Items...)
	}
	return out
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		texts    []string
		maxChars int
		want     []int // items per chunk
	}{
		{"empty", nil, 10, nil},
		{"single fits", []string{"abc"}, 10, []int{1}},
		{"exact fit", []string{"abcd", "efgh"}, 10, []int{2}},
		{"overflow by one", []string{"abcd", "efghi"}, 10, []int{1, 1}},
		{"oversized alone", []string{strings.Repeat("x", 50)}, 10, []int{1}},
		{"oversized in middle", []string{"a", strings.Repeat("x", 50), "b"}, 10, []int{1, 1, 1}},
		{"many small", []string{"a", "b", "c", "d", "e"}, 4, []int{2, 2, 1}},
		{"zero budget", []string{"a", "b"}, 0, []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(items(tt.texts...), tt.maxChars)
			if len(chunks) != len(tt.want) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tt.want))
			}
			for i, c := range chunks {
				if c.Len() != tt.want[i] {
					t.Errorf("chunk %d has %d items, want %d", i, c.Len(), tt.want[i])
				}
				if c.Index != i {
					t.Errorf("chunk %d has index %d", i, c.Index)
				}
			}
		})
	}
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	// 9 runes, 11 bytes, + 1 separator = 10
	in := items("fermééabc", "x")
	chunks := Split(in, 10)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if c := Split(in[:1], 10); len(c) != 1 || c[0].Len() != 1 {
		t.Fatalf("single accented item should fit")
	}
}

func TestSplit_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := rng.Intn(40)
		texts := make([]string, n)
		for i := range texts {
			texts[i] = strings.Repeat("w", rng.Intn(30))
		}
		maxChars := 1 + rng.Intn(60)
		in := items(texts...)

		chunks := Split(in, maxChars)

		got := flatten(chunks)
		if len(got) != len(in) {
			t.Fatalf("round %d: completeness: got %d items, want %d", round, len(got), len(in))
		}
		for i := range in {
			if got[i] != in[i] {
				t.Fatalf("round %d: order broken at %d", round, i)
			}
		}

		for i, c := range chunks {
			if c.Len() == 0 {
				t.Fatalf("round %d: chunk %d is empty", round, i)
			}
			if c.Len() == 1 {
				continue
			}
			size := 0
			for _, it := range c.Items {
				size += ItemCost(it)
			}
			if size > maxChars {
				t.Fatalf("round %d: chunk %d size %d exceeds %d", round, i, size, maxChars)
			}
		}

		if Count(in, maxChars) != len(chunks) {
			t.Fatalf("round %d: Count disagrees with Split", round)
		}
	}
}
