package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jackzampolin/redline/internal/api"
	"github.com/jackzampolin/redline/version"
)

func TestWriteVersion(t *testing.T) {
	t.Run("short", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeVersion(&buf, api.OutputFormatJSON, true); err != nil {
			t.Fatalf("writeVersion() error = %v", err)
		}
		if got := buf.String(); got != version.GitRelease+"\n" {
			t.Errorf("short output = %q", got)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeVersion(&buf, api.OutputFormatJSON, false); err != nil {
			t.Fatalf("writeVersion() error = %v", err)
		}
		var info buildInfo
		if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
		}
		if info.Version != version.GitRelease || info.Go != version.GoInfo {
			t.Errorf("info = %+v", info)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeVersion(&buf, api.OutputFormatYAML, false); err != nil {
			t.Fatalf("writeVersion() error = %v", err)
		}
		if !strings.Contains(buf.String(), "version: "+version.GitRelease) {
			t.Errorf("yaml output = %q", buf.String())
		}
	})
}
