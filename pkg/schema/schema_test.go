package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mwantia/fieldsync/pkg/bridge"
)

const inspectionForm = `{
  "display": "form",
  "components": [
    {"type": "textfield", "key": "type", "label": "Type"},
    {"type": "datetime", "key": "inspectedAt", "label": "Inspected"},
    {"type": "file", "key": "photo", "label": "Photo", "validate": {"required": true}, "multiple": true},
    {"type": "panel", "key": "extra", "components": [
      {"type": "file", "key": "permit", "label": "Permit", "conditional": {"show": true, "when": "type", "eq": "A"}}
    ]},
    {"type": "datagrid", "key": "docs", "label": "Documents", "components": [
      {"type": "file", "key": "scan", "label": "Scan", "filePattern": "application/pdf"}
    ]},
    {"type": "button", "key": "submit", "label": "Send", "action": "submit"}
  ]
}`

func mustParse(t *testing.T, raw string) Document {
	t.Helper()

	doc, err := Parse([]byte(raw), FormatJSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestNormalizeAppendsActions(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, inspectionForm)
	out, err := Normalize(doc, []DateFormat{{Key: "inspectedAt", Format: "yyyy-MM-dd"}})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	components := out.Components()
	if len(components) != 7 {
		t.Fatalf("expected 7 components, got %d", len(components))
	}

	var keys []string
	for _, item := range components {
		keys = append(keys, stringOf(item.(map[string]any)["key"]))
	}
	want := []string{"type", "inspectedAt", "photo", "extra", "docs", SubmitKey, DraftKey}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("component keys mismatch (-want +got):\n%s", diff)
	}

	draft := components[6].(map[string]any)
	if draft["event"] != DraftEvent {
		t.Fatalf("expected draft button to emit %q, got %v", DraftEvent, draft["event"])
	}

	date := components[1].(map[string]any)
	if date["format"] != "yyyy-MM-dd" {
		t.Fatalf("expected date format applied, got %v", date["format"])
	}
	if date["widget"].(map[string]any)["format"] != "yyyy-MM-dd" {
		t.Fatalf("expected widget format applied")
	}

	// The input document must not change.
	if len(doc.Components()) != 6 {
		t.Fatalf("input document was mutated")
	}
	if _, ok := doc.Components()[1].(map[string]any)["format"]; ok {
		t.Fatalf("input date component was mutated")
	}
}

func TestNormalizeRejectsIncompleteDateFormat(t *testing.T) {
	t.Parallel()

	_, err := Normalize(mustParse(t, inspectionForm), []DateFormat{{Key: "inspectedAt"}})
	if err == nil {
		t.Fatalf("expected error for date format without format string")
	}
}

func TestParseBareArrayAndYAML(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`[{"type":"file","key":"photo"}]`), FormatJSON)
	if err != nil {
		t.Fatalf("parse array: %v", err)
	}
	if len(doc.Components()) != 1 || doc["display"] != "form" {
		t.Fatalf("expected wrapped form document, got %v", doc)
	}

	yamlDoc, err := Parse([]byte("components:\n  - type: file\n    key: photo\n    size: 3\n"), FormatYAML)
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	comp := yamlDoc.Components()[0].(map[string]any)
	if _, ok := comp["size"].(float64); !ok {
		t.Fatalf("expected yaml numbers to decode as float64, got %T", comp["size"])
	}

	if _, err := Parse([]byte(`"nope"`), FormatJSON); err == nil {
		t.Fatalf("expected error for scalar schema")
	}
	if _, err := Parse([]byte(`{"components":{}}`), FormatJSON); err == nil {
		t.Fatalf("expected error for non-array components")
	}
}

func TestLoadByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "form.yml")
	if err := os.WriteFile(path, []byte("- type: file\n  key: photo\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(doc.Components()) != 1 {
		t.Fatalf("expected one component")
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDiscoverReportsGridsFirst(t *testing.T) {
	t.Parallel()

	msgs := Discover(mustParse(t, inspectionForm))

	want := []bridge.Message{
		{Kind: bridge.KindDatagrid, Grid: &bridge.GridInfo{
			GridKey: "docs", GridComponents: "scan", Label: "Scan", FilePattern: "application/pdf",
		}},
		{Kind: bridge.KindComponent, Field: &bridge.FieldInfo{
			Key: "photo", Label: "Photo", Required: true, Multiple: true,
		}},
		{Kind: bridge.KindComponent, Field: &bridge.FieldInfo{
			Key: "permit", Label: "Permit", Condition: `{"eq":"A","show":true,"when":"type"}`,
		}},
		{Kind: bridge.KindComponent, Field: &bridge.FieldInfo{
			Key: "scan", Label: "Scan", FilePattern: "application/pdf",
		}},
	}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Fatalf("discovery mismatch (-want +got):\n%s", diff)
	}
}
