package registry

import "github.com/mwantia/fieldsync/pkg/bridge"

// DiffGrids allocates one descriptor per grid row added between the old and
// the new submission. Only array lengths are compared: rows have no identity,
// so the added rows are assumed to be the trailing ones and each descriptor
// carries the files found in that trailing row. Reordered or replaced rows
// are not detected.
func DiffGrids(old, updated *bridge.Submission, grids []GridDescriptor) []FieldDescriptor {
	var added []FieldDescriptor

	for _, grid := range grids {
		before := old.Len(grid.GridKey)
		after := updated.Len(grid.GridKey)
		if after <= before {
			continue
		}

		rows := updated.Rows(grid.GridKey)
		for row := before; row < after; row++ {
			desc := grid.newGridRow(row, after)
			desc.Files = bridge.FilesAt(rows[row], grid.GridComponents)
			added = append(added, desc)
		}
	}

	return added
}
