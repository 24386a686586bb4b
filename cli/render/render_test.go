package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/mason/report"
	"github.com/justapithecus/mason/types"
)

func sampleReport() *report.BatchReport {
	return &report.BatchReport{
		BatchID:   "b-42",
		Version:   types.Version,
		StartedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Bundles: []report.BundleEntry{
			{URL: "https://assets.example/car.zip", ModelStem: "car", Status: types.StatusExported},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"table", FormatTable, false},
		{"yaml", FormatYAML, false},
		{"", "", false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, &buf)

	if err := r.Render(sampleReport()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var decoded report.BatchReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.BatchID != "b-42" {
		t.Errorf("batch ID: got %s", decoded.BatchID)
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, &buf)

	if err := r.Render(sampleReport()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"batch_id:", "b-42", "bundles:", "[1 items]"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatYAML, &buf)

	if err := r.Render(sampleReport()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "b-42") {
		t.Errorf("yaml output missing batch ID:\n%s", buf.String())
	}
}

func TestRenderTUI_Unsupported(t *testing.T) {
	r := NewRendererWithWriter(FormatJSON, &bytes.Buffer{})
	if err := r.RenderTUI("version", nil); err == nil {
		t.Error("expected error for unsupported TUI view")
	}
}

func TestRenderInvalidFormat(t *testing.T) {
	r := NewRendererWithWriter(Format("bogus"), &bytes.Buffer{})
	if err := r.Render(sampleReport()); err == nil {
		t.Error("expected error for unknown format")
	}
}
