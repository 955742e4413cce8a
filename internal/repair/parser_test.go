package repair

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/jackzampolin/redline/internal/types"
)

const doorSchedule = `[{"LineNumber":1,"OriginalText":"les porte son fermé","CorrectedText":"les portes sont fermées","Explanation":"accord","Category":"Erreur"}]`

func TestParse_Array(t *testing.T) {
	got := Parse(doorSchedule, "les porte son fermé")
	want := []types.CorrectionResult{{
		LineNumber:    1,
		OriginalText:  "les porte son fermé",
		CorrectedText: "les portes sont fermées",
		Explanation:   "accord",
		Category:      types.CategoryError,
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParse_FenceEquivalence(t *testing.T) {
	inner := `[{"LineNumber":1,"OriginalText":"a","CorrectedText":"a.","Explanation":"x","Category":"Mineur"},
	{"LineNumber":2,"OriginalText":"b","CorrectedText":"B","Explanation":"y","Category":"Erreur"}]`

	wrappers := map[string]string{
		"json label":   "```json\n" + inner + "\n```",
		"no label":     "```\n" + inner + "\n```",
		"inline":       "```json" + inner + "```",
		"prose around": "Here are the corrections:\n```json\n" + inner + "\n```\nLet me know.",
		"unclosed":     "```json\n" + inner,
	}

	want := Parse(inner, "chunk")
	if len(want) != 2 {
		t.Fatalf("inner parse returned %d results", len(want))
	}
	for name, wrapped := range wrappers {
		t.Run(name, func(t *testing.T) {
			if got := Parse(wrapped, "chunk"); !reflect.DeepEqual(got, want) {
				t.Errorf("Parse(wrapped) = %+v, want %+v", got, want)
			}
		})
	}
}

func TestParse_EmptyFenceKeepsInput(t *testing.T) {
	got := Parse("```json\n```", "chunk")
	if len(got) != 1 || !got[0].IsSynthetic() {
		t.Fatalf("expected synthetic error, got %+v", got)
	}
}

func TestParse_ProseWithBrackets(t *testing.T) {
	inner := `[{"LineNumber":1,"OriginalText":"a","CorrectedText":"a.","Explanation":"x","Category":"Mineur"},
	{"LineNumber":2,"OriginalText":"b","CorrectedText":"B","Explanation":"y","Category":"Erreur"}]`

	tests := []struct {
		name string
		raw  string
	}{
		{"numbered line", "Fixed line [1] below:\n" + inner},
		{"empty object mention", "Returned {} earlier, now:\n" + inner},
		{"bracketed note in fence", "```json\n[note] " + inner + "\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw, "chunk")
			if len(got) != 2 || got[0].LineNumber != 1 || got[1].LineNumber != 2 {
				t.Fatalf("Parse() = %+v", got)
			}
		})
	}
}

func TestParse_UsesCurrentDefaultLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	Parse("no json at all", "chunk")
	if !strings.Contains(buf.String(), "unrecoverable correction response") {
		t.Errorf("default logger got %q", buf.String())
	}
}

func TestParse_SingleObject(t *testing.T) {
	got := Parse(`{"LineNumber":3,"OriginalText":"x","CorrectedText":"y","Explanation":"z","Category":"Minor"}`, "chunk")
	if len(got) != 1 || got[0].LineNumber != 3 || got[0].Category != types.CategoryMinor {
		t.Fatalf("Parse() = %+v", got)
	}
}

func TestParse_WrappedObject(t *testing.T) {
	got := Parse(`{"corrections":`+doorSchedule+`}`, "chunk")
	if len(got) != 1 || got[0].CorrectedText != "les portes sont fermées" {
		t.Fatalf("Parse() = %+v", got)
	}
}

func TestParse_TrailingGarbage(t *testing.T) {
	got := Parse(doorSchedule+"\n\nI hope this helps!}", "chunk")
	if len(got) != 1 || got[0].LineNumber != 1 {
		t.Fatalf("Parse() = %+v", got)
	}
}

func TestParse_TruncatedArrayRecoversPrefix(t *testing.T) {
	raw := `[{"LineNumber":1,"OriginalText":"a","CorrectedText":"A","Explanation":"x","Category":"Erreur"},` +
		`{"LineNumber":2,"OriginalText":"b","CorrectedText":"B","Explanation":"y","Category":"Erreur"},` +
		`{"LineNumber":3,"OriginalText":"c","Correc`

	got := Parse(raw, "chunk")
	if len(got) != 2 {
		t.Fatalf("expected 2 recovered results, got %+v", got)
	}
	if got[0].LineNumber != 1 || got[1].LineNumber != 2 {
		t.Errorf("unexpected recovered prefix: %+v", got)
	}
}

func TestParse_TruncationNeverFails(t *testing.T) {
	full := `[{"LineNumber":1,"OriginalText":"les porte","CorrectedText":"les portes","Explanation":"pluriel","Category":"Erreur"},` +
		`{"LineNumber":2,"OriginalText":"sont fermé","CorrectedText":"sont fermées","Explanation":"accord","Category":"Erreur"}]`

	for cut := 0; cut <= len(full); cut++ {
		got := Parse(full[:cut], "chunk text")
		if len(got) == 0 {
			// An empty array is a valid, recovered prefix only when the input is "[]".
			continue
		}
		if got[0].IsSynthetic() {
			if len(got) != 1 || got[0].OriginalText != "chunk text" {
				t.Fatalf("cut %d: synthetic result must be alone and carry the chunk text: %+v", cut, got)
			}
			continue
		}
		for _, r := range got {
			if r.LineNumber < 1 || r.LineNumber > 2 {
				t.Fatalf("cut %d: recovered bogus result %+v", cut, r)
			}
		}
	}
}

func TestParse_Unrecoverable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose only", "Sorry, I cannot help with that."},
		{"unclosed object", `{"LineNumber":1,"OriginalText":"a"`},
		{"scalar array", `[1, 2, 3]`},
		{"objects without fields", `[{"foo":1},{"bar":2}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw, "the chunk")
			if len(got) != 1 {
				t.Fatalf("expected exactly one result, got %+v", got)
			}
			r := got[0]
			if r.LineNumber != 0 || r.Category != types.CategoryError || r.OriginalText != "the chunk" {
				t.Errorf("unexpected synthetic result: %+v", r)
			}
			if r.Explanation == "" {
				t.Error("synthetic result should explain the failure")
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	p := NewParser(nil)

	if _, err := p.Decode("nothing here"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("Decode(prose) err = %v, want ErrMalformedResponse", err)
	}
	if _, err := p.Decode(`[{"foo":1}]`); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("Decode(bad schema) err = %v, want ErrSchemaMismatch", err)
	}

	got, err := p.Decode(`[]`)
	if err != nil || len(got) != 0 {
		t.Errorf("Decode([]) = %v, %v", got, err)
	}
}

func TestParse_LenientFields(t *testing.T) {
	raw := `[
		{"line_number":"2","original_text":"a","corrected_text":"b","explanation":"e","category":"mineur"},
		{"lineNumber":1.0,"OriginalText":null,"CorrectedText":"c","Explanation":"f","Category":"ERREUR"},
		"stray string",
		{"LineNumber":{"nested":true},"CorrectedText":"dropped"}
	]`
	got := Parse(raw, "chunk")
	if len(got) != 2 {
		t.Fatalf("expected 2 valid elements, got %+v", got)
	}
	if got[0].LineNumber != 2 || got[0].Category != types.CategoryMinor || got[0].CorrectedText != "b" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].LineNumber != 1 || got[1].OriginalText != "" || got[1].Category != types.CategoryError {
		t.Errorf("second = %+v", got[1])
	}
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"```json\n[1]\n```", "[1]"},
		{"```\n```", "```\n```"},
		{"```yaml\nkey: v", "key: v"},
		{"```json[1,\n2]```", "[1,\n2]"},
		{"```json {\"a\":1}```", "{\"a\":1}"},
		{"```c++\r\n[1]\r\n```", "[1]"},
	}
	for _, tt := range tests {
		if got := stripFence(tt.in); got != tt.want {
			t.Errorf("stripFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if !strings.HasPrefix(stripFence("x ```json\n{}\n``` y"), "{}") {
		t.Error("fence after prose should be stripped")
	}
}
