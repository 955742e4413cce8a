package endpoints

import (
	"net/http/httptest"
	"testing"
)

func TestParseGroups(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    map[string]int
		wantErr bool
	}{
		{
			name: "wrapped",
			data: `{"groups": {"ch-1": [{"text": "a", "source_id": "1"}, {"text": "b", "source_id": "2"}]}}`,
			want: map[string]int{"ch-1": 2},
		},
		{
			name: "bare",
			data: `{"ch-1": [{"text": "a"}], "ch-2": []}`,
			want: map[string]int{"ch-1": 1, "ch-2": 0},
		},
		{name: "malformed", data: `{"ch-1": [`, wantErr: true},
		{name: "wrong shape", data: `["a", "b"]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGroups([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGroups() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d groups, want %d", len(got), len(tt.want))
			}
			for key, n := range tt.want {
				if len(got[key]) != n {
					t.Errorf("group %q has %d items, want %d", key, len(got[key]), n)
				}
			}
		})
	}
}

func TestParseCallFilter(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/llmcalls?group=ch-1&success=false&limit=5&offset=10", nil)
	filter, err := parseCallFilter(r.URL.Query())
	if err != nil {
		t.Fatalf("parseCallFilter() error = %v", err)
	}
	if filter.GroupKey != "ch-1" || filter.Limit != 5 || filter.Offset != 10 {
		t.Errorf("unexpected filter: %+v", filter)
	}
	if filter.Success == nil || *filter.Success {
		t.Errorf("Success = %v, want false", filter.Success)
	}

	r = httptest.NewRequest("GET", "/api/llmcalls", nil)
	filter, err = parseCallFilter(r.URL.Query())
	if err != nil {
		t.Fatalf("parseCallFilter() error = %v", err)
	}
	if filter.Limit != 100 {
		t.Errorf("default Limit = %d, want 100", filter.Limit)
	}

	r = httptest.NewRequest("GET", "/api/llmcalls?after=yesterday", nil)
	if _, err := parseCallFilter(r.URL.Query()); err == nil {
		t.Error("expected error for invalid after")
	}
}
