// Package correction holds the prompts for the line correction request.
package correction

import (
	_ "embed"
	"strconv"
	"strings"
	"text/template"

	"github.com/jackzampolin/redline/internal/prompts"
	"github.com/jackzampolin/redline/internal/types"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

var userTemplate = template.Must(prompts.Parse("correction.user", userPromptTmpl))

// Prompt keys
const (
	SystemPromptKey = "correction.system"
	UserPromptKey   = "correction.user"
)

// lineBreaks flattens embedded newlines so one item is always one numbered line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// SystemPrompt returns the embedded system instruction.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt renders the numbered-line payload for a chunk.
func UserPrompt(chunk types.Chunk) string {
	out, err := RenderUser(userTemplate, chunk)
	if err != nil {
		// The embedded template only ranges over strings; fall back to plain numbering.
		return fallbackUserPrompt(chunk)
	}
	return out
}

// RenderUser renders a user template (embedded or override) for a chunk.
func RenderUser(tmpl *template.Template, chunk types.Chunk) (string, error) {
	data := struct{ Lines []string }{Lines: Lines(chunk)}
	out, err := prompts.Render(tmpl, data)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// Lines returns the chunk's item texts with embedded line breaks flattened.
func Lines(chunk types.Chunk) []string {
	lines := make([]string, len(chunk.Items))
	for i, it := range chunk.Items {
		lines[i] = lineBreaks.Replace(it.Text)
	}
	return lines
}

func fallbackUserPrompt(chunk types.Chunk) string {
	var b strings.Builder
	for i, line := range Lines(chunk) {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(line)
	}
	return b.String()
}

// RegisterPrompts registers the correction prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Line correction system prompt - JSON array contract, one entry per line",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Line correction user prompt - numbered chunk lines",
	})
}
