// Package registry keeps the file registry of a form record: one descriptor
// per file-capable field (or new grid row) and the attachments queued for
// deferred upload under it.
package registry

import (
	"html"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mwantia/fieldsync/pkg/bridge"
	"github.com/mwantia/fieldsync/pkg/db/models"
)

// newID generates descriptor ids. Tests replace it for stable output.
var newID = uuid.NewString

var labelPolicy = bluemonday.StrictPolicy()

// FieldDescriptor describes one file-capable form field, or one row of a
// repeating grid when IsDataGrid is set. Descriptors are write-once.
type FieldDescriptor struct {
	ID      string `json:"id"`
	Key     string `json:"key"`
	Label   string `json:"label"`
	GridKey string `json:"gridKey,omitempty"`
	// Row is the index of the grid row this descriptor was allocated for.
	Row        int    `json:"row,omitempty"`
	IsMultiple bool   `json:"isMultiple"`
	IsDataGrid bool   `json:"isDataGrid"`
	Count      int    `json:"count,omitempty"`
	Condition  string `json:"condition,omitempty"`
	// IsCustomCondition is never set by any renderer we talk to.
	IsCustomCondition bool   `json:"isCustomCondition"`
	ValidateRequired  bool   `json:"validateRequired"`
	FilePattern       string `json:"filePattern,omitempty"`

	Files []bridge.FileRef `json:"files,omitempty"`
}

// GridDescriptor describes one repeating group that contains a file field.
type GridDescriptor struct {
	GridKey        string `json:"gridKey"`
	GridComponents string `json:"gridComponents"`
	IsReq          bool   `json:"isReq"`
	IsMultiple     bool   `json:"isMultiple"`
	Label          string `json:"label"`
	FilePattern    string `json:"filePattern,omitempty"`
}

// NewFieldDescriptor allocates a descriptor with a fresh id for a discovered
// top-level field.
func NewFieldDescriptor(info bridge.FieldInfo) FieldDescriptor {
	return FieldDescriptor{
		ID:               newID(),
		Key:              info.Key,
		Label:            CleanLabel(info.Label),
		IsMultiple:       info.Multiple,
		Condition:        strings.TrimSpace(info.Condition),
		ValidateRequired: info.Required,
		FilePattern:      info.FilePattern,
	}
}

// NewGridDescriptor converts a datagrid discovery message.
func NewGridDescriptor(info bridge.GridInfo) GridDescriptor {
	return GridDescriptor{
		GridKey:        info.GridKey,
		GridComponents: info.GridComponents,
		IsReq:          info.Required,
		IsMultiple:     info.Multiple,
		Label:          CleanLabel(info.Label),
		FilePattern:    info.FilePattern,
	}
}

// newGridRow allocates the descriptor for one added grid row.
func (g GridDescriptor) newGridRow(row, count int) FieldDescriptor {
	return FieldDescriptor{
		ID:               newID(),
		Key:              g.GridComponents,
		Label:            g.Label,
		GridKey:          g.GridKey,
		Row:              row,
		IsMultiple:       g.IsMultiple,
		IsDataGrid:       true,
		Count:            count,
		ValidateRequired: g.IsReq,
		FilePattern:      g.FilePattern,
	}
}

// CleanLabel strips markup from a schema label; labels are display-only
// plain text once they leave the renderer.
func CleanLabel(label string) string {
	return strings.TrimSpace(html.UnescapeString(labelPolicy.Sanitize(label)))
}

// Model converts the descriptor into its stored row for recordID.
func (d FieldDescriptor) Model(recordID string) *models.Descriptor {
	return &models.Descriptor{
		DescriptorID:      d.ID,
		RecordID:          recordID,
		FieldKey:          d.Key,
		Label:             d.Label,
		GridKey:           d.GridKey,
		RowIndex:          d.Row,
		Count:             d.Count,
		IsMultiple:        d.IsMultiple,
		IsDataGrid:        d.IsDataGrid,
		Condition:         d.Condition,
		IsCustomCondition: d.IsCustomCondition,
		ValidateRequired:  d.ValidateRequired,
		FilePattern:       d.FilePattern,
	}
}

// FromModel rebuilds a descriptor, with its queued files, from a stored row.
func FromModel(m models.Descriptor) FieldDescriptor {
	d := FieldDescriptor{
		ID:                m.DescriptorID,
		Key:               m.FieldKey,
		Label:             m.Label,
		GridKey:           m.GridKey,
		Row:               m.RowIndex,
		IsMultiple:        m.IsMultiple,
		IsDataGrid:        m.IsDataGrid,
		Count:             m.Count,
		Condition:         m.Condition,
		IsCustomCondition: m.IsCustomCondition,
		ValidateRequired:  m.ValidateRequired,
		FilePattern:       m.FilePattern,
	}
	for _, f := range m.Files {
		d.Files = append(d.Files, bridge.FileRef{
			Name:     f.Name,
			URL:      f.URL,
			MimeType: f.MimeType,
			Size:     f.Size,
			Storage:  f.Storage,
		})
	}
	return d
}
