// Package prompts provides prompt management with embedded defaults and config overrides.
//
// Resolution order for a key:
//  1. Override text from configuration (the prompts.overrides list)
//  2. Embedded default (from .tmpl files in code)
//
// Every resolved prompt carries a content hash so LLM call records can be
// traced back to the exact prompt text that produced them.
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: correction.system
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text
}

// ResolvedPrompt is the result of resolving a prompt key.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	CID        string   `json:"cid"` // content hash of Text
}
