package repair

import (
	"strings"

	"github.com/tidwall/gjson"
)

const fence = "```"

// stripFence removes a fenced code-block wrapper such as ```json ... ```.
// A missing closing fence is tolerated since truncated responses lose it.
// Returns the input unchanged when there is no fence or the block is empty.
func stripFence(s string) string {
	start := strings.Index(s, fence)
	if start < 0 {
		return s
	}

	body := s[start+len(fence):]
	body = strings.TrimLeftFunc(body[labelLen(body):], isSpace)
	if end := strings.LastIndex(body, fence); end >= 0 {
		body = body[:end]
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return s
	}
	return body
}

// labelLen is the length of the block label at the start of s.
func labelLen(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '+', c == '-':
		default:
			return i
		}
	}
	return len(s)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

// candidates returns every suffix of s starting at a '[' or '{', in order.
func candidates(s string) []string {
	var out []string
	for i := 0; i < len(s); i++ {
		if s[i] == '[' || s[i] == '{' {
			out = append(out, s[i:])
		}
	}
	return out
}

// extractTrees yields, in input order, the tree recovered from each opening
// bracket of the unfenced response. Iteration stops when yield returns false.
func extractTrees(s string, yield func(gjson.Result) bool) {
	s = strings.TrimSpace(stripFence(strings.TrimSpace(s)))
	for _, c := range candidates(s) {
		if tree, ok := extractTree(c); ok && !yield(tree) {
			return
		}
	}
}

// extractTree finds the longest prefix of s that parses as a JSON array or object,
// trimming trailing characters one at a time. A prefix that opens an array and ends
// on a complete object is also tried with a closing ']' so truncated arrays keep
// their complete leading elements. s must start with '[' or '{'.
func extractTree(s string) (gjson.Result, bool) {
	for len(s) > 0 {
		// Only a candidate ending in a closing bracket can be a complete value,
		// so every shorter candidate in between would fail to parse.
		end := strings.LastIndexAny(s, "]}")
		if end < 0 {
			break
		}
		s = s[:end+1]

		if gjson.Valid(s) {
			return gjson.Parse(s), true
		}
		if s[0] == '[' && s[len(s)-1] == '}' {
			if closed := s + "]"; gjson.Valid(closed) {
				return gjson.Parse(closed), true
			}
		}
		s = s[:len(s)-1]
	}
	return gjson.Result{}, false
}
