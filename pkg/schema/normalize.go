package schema

import (
	"fmt"
	"strings"
)

const (
	SubmitKey = "submit"
	DraftKey  = "saveDraft"

	// DraftEvent is the custom renderer event the draft button emits; the
	// bridge reports it as an isDraft message.
	DraftEvent = "isDraft"
)

// DateFormat pins the display/submission format of a date component.
type DateFormat struct {
	Key    string
	Format string
}

// Normalize returns a renderer-ready copy of doc: date formats applied,
// pre-existing submit/draft buttons removed and one trailing submit and one
// save-draft button appended. doc itself is left untouched.
func Normalize(doc Document, dateFormats []DateFormat) (Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("schema: document is nil")
	}

	out, err := doc.clone()
	if err != nil {
		return nil, fmt.Errorf("schema: copy document: %w", err)
	}

	formats := make(map[string]string, len(dateFormats))
	for _, df := range dateFormats {
		key := strings.TrimSpace(df.Key)
		if key == "" || df.Format == "" {
			return nil, fmt.Errorf("schema: date format requires key and format")
		}
		formats[key] = df.Format
	}

	components := out.Components()
	if components == nil {
		if _, present := out["components"]; present {
			return nil, fmt.Errorf("schema: components must be an array")
		}
	}

	walk(components, "components", func(comp map[string]any, path string) bool {
		format, ok := formats[stringOf(comp["key"])]
		if !ok {
			return true
		}
		switch stringOf(comp["type"]) {
		case "datetime", "day", "date":
			comp["format"] = format
			widget, _ := comp["widget"].(map[string]any)
			if widget == nil {
				widget = map[string]any{}
			}
			widget["format"] = format
			comp["widget"] = widget
		}
		return true
	})

	kept := make([]any, 0, len(components)+2)
	for _, item := range components {
		comp, ok := item.(map[string]any)
		if ok && stringOf(comp["type"]) == "button" {
			switch stringOf(comp["key"]) {
			case SubmitKey, DraftKey:
				continue
			}
		}
		kept = append(kept, item)
	}

	kept = append(kept,
		map[string]any{
			"type":             "button",
			"key":              SubmitKey,
			"label":            "Submit",
			"action":           "submit",
			"input":            true,
			"disableOnInvalid": true,
		},
		map[string]any{
			"type":   "button",
			"key":    DraftKey,
			"label":  "Save Draft",
			"action": "event",
			"event":  DraftEvent,
			"input":  true,
		},
	)

	out["components"] = kept
	if _, ok := out["display"]; !ok {
		out["display"] = "form"
	}
	return out, nil
}

// walk visits every component in depth-first order, descending into
// panels, columns, tables and any other container with nested components.
// Returning false from visit skips the component's children.
func walk(components []any, path string, visit func(comp map[string]any, path string) bool) {
	for i, item := range components {
		comp, ok := item.(map[string]any)
		if !ok {
			continue
		}
		here := fmt.Sprintf("%s[%d]", path, i)
		if !visit(comp, here) {
			continue
		}
		for _, child := range children(comp, here) {
			walk(child.components, child.path, visit)
		}
	}
}

type childList struct {
	components []any
	path       string
}

func children(comp map[string]any, path string) []childList {
	var out []childList
	if list, ok := comp["components"].([]any); ok {
		out = append(out, childList{list, path + ".components"})
	}
	if cols, ok := comp["columns"].([]any); ok {
		for i, col := range cols {
			if colMap, ok := col.(map[string]any); ok {
				if list, ok := colMap["components"].([]any); ok {
					out = append(out, childList{list, fmt.Sprintf("%s.columns[%d].components", path, i)})
				}
			}
		}
	}
	if rows, ok := comp["rows"].([]any); ok {
		for r, row := range rows {
			cells, ok := row.([]any)
			if !ok {
				continue
			}
			for c, cell := range cells {
				if cellMap, ok := cell.(map[string]any); ok {
					if list, ok := cellMap["components"].([]any); ok {
						out = append(out, childList{list, fmt.Sprintf("%s.rows[%d][%d].components", path, r, c)})
					}
				}
			}
		}
	}
	return out
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
