// Package bridge decodes the messages the embedded form renderer posts to the
// host into a single tagged Message value.
package bridge

import "encoding/json"

// Kind tags the variant carried by a Message.
type Kind int

const (
	KindDebug Kind = iota + 1
	KindError
	KindComponent
	KindDatagrid
	KindSubmit
	KindDraft
	KindChange
)

func (k Kind) String() string {
	switch k {
	case KindDebug:
		return "debug"
	case KindError:
		return "error"
	case KindComponent:
		return "component"
	case KindDatagrid:
		return "datagrid"
	case KindSubmit:
		return "submit"
	case KindDraft:
		return "isDraft"
	case KindChange:
		return "change"
	default:
		return "unknown"
	}
}

// Terminal reports whether the message ends the discovery phase.
func (k Kind) Terminal() bool {
	return k == KindSubmit || k == KindDraft
}

// Message is the decoded form of one bridge post. Exactly one payload field
// is set, selected by Kind.
type Message struct {
	Kind Kind

	// Text is set for KindDebug and KindError.
	Text string
	// Field is set for KindComponent.
	Field *FieldInfo
	// Grid is set for KindDatagrid.
	Grid *GridInfo
	// Submission is set for KindSubmit and KindDraft.
	Submission *Submission
	// Data is set for KindChange.
	Data map[string]any
}

// FieldInfo describes one file-capable component reported during the walk.
type FieldInfo struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Multiple    bool   `json:"multiple"`
	Required    bool   `json:"required"`
	FilePattern string `json:"filePattern"`
	// Condition is the serialized {show, when, eq} visibility rule, or empty.
	Condition string `json:"-"`
}

// GridInfo describes one repeating group that contains a file component.
type GridInfo struct {
	GridKey        string `json:"gridKey"`
	GridComponents string `json:"gridComponents"`
	Label          string `json:"label"`
	Required       bool   `json:"required"`
	Multiple       bool   `json:"multiple"`
	FilePattern    string `json:"filePattern"`
}

// Submission is a submission document. Data holds the field values; Raw
// keeps the document as it was received.
type Submission struct {
	Data map[string]any
	Raw  json.RawMessage
}

// Len returns the length of the array stored under key, or 0 when the key is
// missing or does not hold an array.
func (s *Submission) Len(key string) int {
	if s == nil {
		return 0
	}
	rows, ok := s.Data[key].([]any)
	if !ok {
		return 0
	}
	return len(rows)
}

// Rows returns the grid rows stored under key.
func (s *Submission) Rows(key string) []map[string]any {
	if s == nil {
		return nil
	}
	raw, ok := s.Data[key].([]any)
	if !ok {
		return nil
	}
	rows := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		row, _ := item.(map[string]any)
		rows = append(rows, row)
	}
	return rows
}

// FileRef is one attachment as it appears in a submission document.
type FileRef struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"type"`
	Size     int64  `json:"size,omitempty"`
	Storage  string `json:"storage,omitempty"`
}
