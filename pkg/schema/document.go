// Package schema loads form-schema documents and prepares them for the
// embedded renderer.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names the encoding of a raw schema document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is a form schema as a generic JSON tree. The root always carries
// a "components" array once parsed.
type Document map[string]any

// Components returns the top-level component list.
func (d Document) Components() []any {
	list, _ := d["components"].([]any)
	return list
}

// JSON encodes the document for injection into the renderer.
func (d Document) JSON() ([]byte, error) {
	return json.Marshal(map[string]any(d))
}

// Load reads a schema file, choosing the decoder from its extension.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}

	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a raw schema. The payload may be a form object with a
// "components" array or a bare array of components.
func Parse(data []byte, format Format) (Document, error) {
	var root any
	switch format {
	case FormatYAML:
		var node any
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		// Round-trip through JSON so numbers and maps have the same shapes
		// as documents decoded from JSON.
		encoded, err := json.Marshal(node)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		data = encoded
		fallthrough
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&root); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	switch typed := root.(type) {
	case []any:
		return Document{"display": "form", "components": typed}, nil
	case map[string]any:
		if _, ok := typed["components"]; !ok {
			typed["components"] = []any{}
		}
		if _, ok := typed["components"].([]any); !ok {
			return nil, fmt.Errorf("components must be an array")
		}
		return Document(typed), nil
	default:
		return nil, fmt.Errorf("schema must be an object or an array")
	}
}

// clone deep-copies a document through JSON.
func (d Document) clone() (Document, error) {
	data, err := d.JSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return Document(out), nil
}
