package schema

import (
	"encoding/json"

	"github.com/mwantia/fieldsync/pkg/bridge"
)

var gridTypes = map[string]struct{}{
	"datagrid": {},
	"editgrid": {},
}

// Discover replays the renderer's schema walk offline. It reports every
// grid that contains a file component first, then every file component in
// walk order. Grid-nested file components are reported a second time as
// plain components, the same way the renderer does.
func Discover(doc Document) []bridge.Message {
	var grids, fields []bridge.Message

	walk(doc.Components(), "components", func(comp map[string]any, path string) bool {
		if _, ok := gridTypes[stringOf(comp["type"])]; !ok {
			return true
		}
		nested := firstFileComponent(comp)
		if nested == nil {
			return true
		}
		required, _ := validateRequired(nested)
		multiple, _ := nested["multiple"].(bool)
		grids = append(grids, bridge.Message{
			Kind: bridge.KindDatagrid,
			Grid: &bridge.GridInfo{
				GridKey:        stringOf(comp["key"]),
				GridComponents: stringOf(nested["key"]),
				Label:          stringOf(nested["label"]),
				Required:       required,
				Multiple:       multiple,
				FilePattern:    stringOf(nested["filePattern"]),
			},
		})
		return true
	})

	walk(doc.Components(), "components", func(comp map[string]any, path string) bool {
		if stringOf(comp["type"]) != "file" {
			return true
		}
		required, _ := validateRequired(comp)
		multiple, _ := comp["multiple"].(bool)
		fields = append(fields, bridge.Message{
			Kind: bridge.KindComponent,
			Field: &bridge.FieldInfo{
				Key:         stringOf(comp["key"]),
				Label:       stringOf(comp["label"]),
				Multiple:    multiple,
				Required:    required,
				FilePattern: stringOf(comp["filePattern"]),
				Condition:   conditionOf(comp),
			},
		})
		return true
	})

	return append(grids, fields...)
}

func firstFileComponent(grid map[string]any) map[string]any {
	var found map[string]any
	list, _ := grid["components"].([]any)
	walk(list, "components", func(comp map[string]any, path string) bool {
		if found != nil {
			return false
		}
		if stringOf(comp["type"]) == "file" {
			found = comp
			return false
		}
		return true
	})
	return found
}

func validateRequired(comp map[string]any) (bool, bool) {
	validate, ok := comp["validate"].(map[string]any)
	if !ok {
		return false, false
	}
	required, ok := validate["required"].(bool)
	return required, ok
}

// conditionOf serializes a component's simple conditional. Rules without a
// "when" target are treated as absent.
func conditionOf(comp map[string]any) string {
	cond, ok := comp["conditional"].(map[string]any)
	if !ok {
		return ""
	}
	if when := stringOf(cond["when"]); when == "" {
		return ""
	}
	data, err := json.Marshal(map[string]any{
		"show": cond["show"],
		"when": cond["when"],
		"eq":   cond["eq"],
	})
	if err != nil {
		return ""
	}
	return string(data)
}
