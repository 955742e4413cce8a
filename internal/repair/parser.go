// Package repair turns untrusted correction-service output into typed results.
//
// Parsing runs in two stages. The first recovers a generic JSON tree from noisy
// text (code fences, leading prose, truncation). The second validates each
// element against the correction item schema and converts it to a
// types.CorrectionResult. Parse never fails: unrecoverable output becomes a
// single synthetic Error result.
package repair

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/jackzampolin/redline/internal/types"
)

// Sentinel errors for response decoding.
var (
	ErrMalformedResponse = errors.New("malformed correction response")
	ErrSchemaMismatch    = errors.New("no element matches the correction schema")
)

// itemSchema is deliberately lenient: models vary in how they type line numbers
// and in which optional fields they omit.
const itemSchema = `{
	"type": "object",
	"properties": {
		"LineNumber":    {"type": ["integer", "string"]},
		"OriginalText":  {"type": ["string", "null"]},
		"CorrectedText": {"type": ["string", "null"]},
		"Explanation":   {"type": ["string", "null"]},
		"Category":      {"type": ["string", "null"]}
	},
	"anyOf": [
		{"required": ["LineNumber"]},
		{"required": ["CorrectedText"]},
		{"required": ["Explanation"]}
	]
}`

var compiledItemSchema = jsonschema.MustCompileString("correction_item.json", itemSchema)

// canonicalFields maps normalized key spellings (lowercase, no underscores) to schema names.
var canonicalFields = map[string]string{
	"linenumber":    "LineNumber",
	"line":          "LineNumber",
	"originaltext":  "OriginalText",
	"original":      "OriginalText",
	"correctedtext": "CorrectedText",
	"corrected":     "CorrectedText",
	"explanation":   "Explanation",
	"category":      "Category",
}

// Parser decodes correction responses.
type Parser struct {
	schema *jsonschema.Schema
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger uses whatever slog.Default() is
// when the parser logs.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{schema: compiledItemSchema, logger: logger}
}

var defaultParser = NewParser(nil)

func (p *Parser) log() *slog.Logger {
	if p.logger == nil {
		return slog.Default()
	}
	return p.logger
}

// Parse decodes raw with the default parser.
func Parse(raw, chunkText string) []types.CorrectionResult {
	return defaultParser.Parse(raw, chunkText)
}

// Parse always returns a usable list. When raw cannot be decoded the list holds
// one synthetic Error result whose OriginalText is chunkText.
func (p *Parser) Parse(raw, chunkText string) []types.CorrectionResult {
	results, err := p.Decode(raw)
	if err != nil {
		p.log().Warn("unrecoverable correction response", "error", err, "response_len", len(raw))
		return []types.CorrectionResult{
			types.NewErrorResult(chunkText, fmt.Sprintf("Unable to read the correction service response: %v", err)),
		}
	}
	return results
}

// Decode runs both stages and reports why decoding failed. Brackets in prose
// ahead of the payload can yield a tree with no correction elements, so each
// later opening bracket is tried in turn until one converts.
func (p *Parser) Decode(raw string) ([]types.CorrectionResult, error) {
	var (
		results  []types.CorrectionResult
		firstErr error
		found    bool
	)
	extractTrees(raw, func(tree gjson.Result) bool {
		r, err := p.convert(tree)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return true
		}
		results, found = r, true
		return false
	})
	switch {
	case found:
		return results, nil
	case firstErr != nil:
		return nil, firstErr
	default:
		return nil, ErrMalformedResponse
	}
}

// convert is the validated conversion stage.
func (p *Parser) convert(tree gjson.Result) ([]types.CorrectionResult, error) {
	var elements []gjson.Result
	switch {
	case tree.IsArray():
		elements = tree.Array()
	case tree.IsObject():
		if inner, ok := wrappedArray(tree); ok {
			elements = inner.Array()
		} else {
			elements = []gjson.Result{tree}
		}
	default:
		return nil, ErrMalformedResponse
	}

	results := make([]types.CorrectionResult, 0, len(elements))
	var lastErr error
	for i, el := range elements {
		r, err := p.convertElement(el)
		if err != nil {
			p.log().Debug("dropping invalid correction element", "index", i, "error", err)
			lastErr = err
			continue
		}
		results = append(results, r)
	}

	if len(elements) > 0 && len(results) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, lastErr)
	}
	return results, nil
}

func (p *Parser) convertElement(el gjson.Result) (types.CorrectionResult, error) {
	if !el.IsObject() {
		return types.CorrectionResult{}, fmt.Errorf("element is %s, not an object", el.Type)
	}

	fields := normalize(el)
	doc := make(map[string]any, len(fields))
	for k, v := range fields {
		doc[k] = v.Value()
	}
	if err := p.schema.Validate(doc); err != nil {
		return types.CorrectionResult{}, err
	}

	return types.CorrectionResult{
		LineNumber:    int(fields["LineNumber"].Int()),
		OriginalText:  fields["OriginalText"].String(),
		CorrectedText: fields["CorrectedText"].String(),
		Explanation:   fields["Explanation"].String(),
		Category:      types.ParseCategory(fields["Category"].String()),
	}, nil
}

// normalize keys an object's recognized fields by their canonical names.
// Unrecognized keys are dropped.
func normalize(obj gjson.Result) map[string]gjson.Result {
	out := make(map[string]gjson.Result, 5)
	obj.ForEach(func(key, value gjson.Result) bool {
		norm := strings.ToLower(strings.ReplaceAll(key.String(), "_", ""))
		if name, ok := canonicalFields[norm]; ok {
			if _, seen := out[name]; !seen {
				out[name] = value
			}
		}
		return true
	})
	return out
}

// wrappedArray unwraps objects like {"corrections": [...]} that carry no
// correction fields of their own and exactly one array value.
func wrappedArray(obj gjson.Result) (gjson.Result, bool) {
	if len(normalize(obj)) > 0 {
		return gjson.Result{}, false
	}
	var found gjson.Result
	count := 0
	obj.ForEach(func(_, value gjson.Result) bool {
		if value.IsArray() {
			found = value
			count++
		}
		return true
	})
	return found, count == 1
}
