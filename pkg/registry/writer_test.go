package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mwantia/fieldsync/pkg/bridge"
	"github.com/mwantia/fieldsync/pkg/db/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func files(names ...string) []bridge.FileRef {
	refs := make([]bridge.FileRef, len(names))
	for i, name := range names {
		refs[i] = bridge.FileRef{Name: name, URL: "https://files/" + name}
	}
	return refs
}

func TestWriterPersistIsIdempotent(t *testing.T) {
	w, s := newTestWriter(t)
	ctx := context.Background()

	desc := FieldDescriptor{ID: "d-1", Key: "photo", Label: "Photo"}

	created, report := w.Persist(ctx, "rec-1", desc, files("a.jpg"))
	require.NoError(t, report.Err())
	assert.True(t, created)
	assert.Equal(t, 1, report.Descriptors)
	assert.Equal(t, 1, report.Files)

	again := desc
	again.ID = "d-2"
	created, report = w.Persist(ctx, "rec-1", again, files("b.jpg"))
	require.NoError(t, report.Err())
	assert.False(t, created)
	assert.Zero(t, report.Files)

	assert.Len(t, s.descriptors, 1)
	assert.Equal(t, []string{"a.jpg"}, s.fileNames("d-1"))
	assert.Empty(t, s.fileNames("d-2"))
}

func TestWriterPersistGridRows(t *testing.T) {
	w, s := newTestWriter(t)
	ctx := context.Background()

	grid := GridDescriptor{GridKey: "docs", GridComponents: "scan"}
	for row := 0; row < 3; row++ {
		desc := grid.newGridRow(row, 3)
		created, report := w.Persist(ctx, "rec-1", desc, nil)
		require.NoError(t, report.Err())
		assert.True(t, created, "row %d", row)
	}

	created, _ := w.Persist(ctx, "rec-1", grid.newGridRow(1, 3), nil)
	assert.False(t, created)

	ids := make(map[string]struct{})
	for _, d := range s.descriptors {
		ids[d.DescriptorID] = struct{}{}
	}
	assert.Len(t, ids, 3)
}

func TestWriterPersistPartialFileFailure(t *testing.T) {
	w, s := newTestWriter(t)
	s.failFiles["b.pdf"] = true

	desc := FieldDescriptor{ID: "d-1", Key: "docs"}
	created, report := w.Persist(context.Background(), "rec-1", desc, files("a.pdf", "b.pdf", "c.pdf"))

	assert.True(t, created)
	assert.Equal(t, 2, report.Files)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "insert file", report.Failures[0].Op)
	assert.True(t, errors.Is(report.Err(), errDisk))
	assert.Equal(t, []string{"a.pdf", "c.pdf"}, s.fileNames("d-1"))
}

func TestWriterPersistDescriptorFailureSkipsFiles(t *testing.T) {
	w, s := newTestWriter(t)
	s.failDescriptors = true

	created, report := w.Persist(context.Background(), "rec-1", FieldDescriptor{ID: "d-1", Key: "photo"}, files("a.jpg"))

	assert.False(t, created)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "insert descriptor", report.Failures[0].Op)
	assert.Empty(t, s.files)
}

func TestWriterPersistExistenceFailure(t *testing.T) {
	w, s := newTestWriter(t)
	s.failExists = true

	created, report := w.Persist(context.Background(), "rec-1", FieldDescriptor{ID: "d-1", Key: "photo"}, files("a.jpg"))

	assert.False(t, created)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "exists", report.Failures[0].Op)
	assert.Empty(t, s.descriptors)
}

func TestWriterAppendSkipsQueuedFiles(t *testing.T) {
	w, s := newTestWriter(t)
	ctx := context.Background()

	_, report := w.Persist(ctx, "rec-1", FieldDescriptor{ID: "d-1", Key: "photo"}, files("a.jpg"))
	require.NoError(t, report.Err())

	report = w.Append(ctx, "rec-1", "photo", files("a.jpg", "b.jpg", "b.jpg"))
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, s.fileNames("d-1"))
}

func TestWriterAppendUnknownField(t *testing.T) {
	w, s := newTestWriter(t)

	report := w.Append(context.Background(), "rec-1", "photo", files("a.jpg"))
	assert.NoError(t, report.Err())
	assert.Zero(t, report.Files)
	assert.Empty(t, s.files)
}

func TestWriterPurge(t *testing.T) {
	w, s := newTestWriter(t)
	ctx := context.Background()

	_, _ = w.Persist(ctx, "rec-1", FieldDescriptor{ID: "d-1", Key: "docs", Condition: `{"show":true,"when":"type","eq":"A"}`}, files("a.pdf"))
	_, _ = w.Persist(ctx, "rec-1", FieldDescriptor{ID: "d-2", Key: "photo"}, files("p.jpg"))
	_, _ = w.Persist(ctx, "rec-2", FieldDescriptor{ID: "d-3", Key: "docs"}, files("x.pdf"))

	report := w.Purge(ctx, "rec-1", "docs")
	require.NoError(t, report.Err())
	assert.EqualValues(t, 1, report.Purged)

	assert.Empty(t, s.fileNames("d-1"))
	assert.Equal(t, []string{"p.jpg"}, s.fileNames("d-2"))
	assert.Equal(t, []string{"x.pdf"}, s.fileNames("d-3"))

	report = w.Purge(ctx, "rec-1", "docs")
	assert.NoError(t, report.Err())
	assert.Zero(t, report.Purged)
}

func TestWriterPurgeEmptyKeepsGridRows(t *testing.T) {
	w, s := newTestWriter(t)
	ctx := context.Background()

	_, _ = w.Persist(ctx, "rec-1", FieldDescriptor{ID: "d-1", Key: "scan"}, nil)
	_, _ = w.Persist(ctx, "rec-1", FieldDescriptor{ID: "g-1", Key: "scan", GridKey: "docs", IsDataGrid: true, Row: 0}, files("c.pdf"))

	report := w.PurgeEmpty(ctx, "rec-1", "scan")
	require.NoError(t, report.Err())
	assert.EqualValues(t, 1, report.Purged)

	require.Len(t, s.descriptors, 1)
	assert.Equal(t, "g-1", s.descriptors[0].DescriptorID)
	assert.Equal(t, []string{"c.pdf"}, s.fileNames("g-1"))
}

func TestWriterPurgeEmptyKeepsQueuedFiles(t *testing.T) {
	w, s := newTestWriter(t)
	ctx := context.Background()

	_, _ = w.Persist(ctx, "rec-1", FieldDescriptor{ID: "d-1", Key: "photo"}, files("a.jpg"))

	report := w.PurgeEmpty(ctx, "rec-1", "photo")
	require.NoError(t, report.Err())
	assert.Zero(t, report.Purged)
	assert.Len(t, s.descriptors, 1)

	report = w.PurgeEmpty(ctx, "rec-1", "missing")
	assert.NoError(t, report.Err())
	assert.Zero(t, report.Purged)
}

func TestWriterAgainstSQLite(t *testing.T) {
	s, err := store.NewSQLiteStore(store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "queue.db")})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })

	w := NewWriter(s, testLogger())

	_, report := w.Persist(ctx, "rec-1", FieldDescriptor{ID: "d-1", Key: "photo"}, files("a.jpg"))
	require.NoError(t, report.Err())

	report = w.Append(ctx, "rec-1", "photo", files("a.jpg", "b.jpg"))
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Files)

	stored, err := s.ListDescriptors(ctx, "rec-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)

	desc := FromModel(stored[0])
	assert.Equal(t, "d-1", desc.ID)
	assert.Equal(t, files("a.jpg", "b.jpg"), desc.Files)

	report = w.Purge(ctx, "rec-1", "photo")
	require.NoError(t, report.Err())

	count, err := s.CountFileRecords(ctx, "rec-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
