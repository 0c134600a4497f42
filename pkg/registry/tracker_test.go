package registry

import (
	"context"
	"testing"

	"github.com/mwantia/fieldsync/pkg/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRegistersPlainFieldsWithPriorFiles(t *testing.T) {
	stubIDs(t)

	w, s := newTestWriter(t)
	prior := &bridge.Submission{Data: map[string]any{
		"photo": []any{map[string]any{"originalName": "a.jpg", "name": "a-123.jpg", "url": "https://files/a.jpg"}},
	}}
	tracker := NewTracker("rec-1", prior, w, testLogger())

	got, report := tracker.OnComponent(context.Background(), bridge.FieldInfo{Key: "photo", Label: "<b>Photo</b>"})
	require.NoError(t, report.Err())
	assert.Equal(t, Registered, got)
	assert.Equal(t, []string{"a.jpg"}, s.fileNames("id-1"))

	others := tracker.Others()
	require.Len(t, others, 1)
	assert.Equal(t, "Photo", others[0].Label)

	got, _ = tracker.OnComponent(context.Background(), bridge.FieldInfo{Key: "photo", Label: "Photo"})
	assert.Equal(t, SkippedDuplicate, got)
}

func TestTrackerReportsAlreadyStored(t *testing.T) {
	w, _ := newTestWriter(t)
	ctx := context.Background()

	first := NewTracker("rec-1", nil, w, testLogger())
	got, _ := first.OnComponent(ctx, bridge.FieldInfo{Key: "photo"})
	require.Equal(t, Registered, got)

	second := NewTracker("rec-1", nil, w, testLogger())
	got, _ = second.OnComponent(ctx, bridge.FieldInfo{Key: "photo"})
	assert.Equal(t, AlreadyStored, got)
	assert.Len(t, second.Others(), 1)
}

func TestTrackerSkipsGridFieldsAndDefersConditionals(t *testing.T) {
	w, s := newTestWriter(t)
	ctx := context.Background()
	tracker := NewTracker("rec-1", nil, w, testLogger())

	grid := bridge.GridInfo{GridKey: "docs", GridComponents: "scan", Label: "Scans"}
	tracker.OnDatagrid(grid)
	tracker.OnDatagrid(grid)
	assert.Len(t, tracker.Grids(), 1)

	got, _ := tracker.OnComponent(ctx, bridge.FieldInfo{Key: "scan", Label: "Scans"})
	assert.Equal(t, SkippedGridField, got)

	got, _ = tracker.OnComponent(ctx, bridge.FieldInfo{Key: "permit", Condition: `{"eq":"A","show":true,"when":"type"}`})
	assert.Equal(t, Deferred, got)
	assert.Len(t, tracker.Pending(), 1)
	assert.Empty(t, tracker.Others())
	assert.Empty(t, s.descriptors)
}

func TestTrackerDropOther(t *testing.T) {
	w, _ := newTestWriter(t)
	ctx := context.Background()
	tracker := NewTracker("rec-1", nil, w, testLogger())

	_, _ = tracker.OnComponent(ctx, bridge.FieldInfo{Key: "photo"})
	_, _ = tracker.OnComponent(ctx, bridge.FieldInfo{Key: "scan"})

	assert.Equal(t, 1, tracker.DropOther("scan"))
	assert.Equal(t, 0, tracker.DropOther("scan"))

	others := tracker.Others()
	require.Len(t, others, 1)
	assert.Equal(t, "photo", others[0].Key)
}

func TestTrackerFailedWrite(t *testing.T) {
	w, s := newTestWriter(t)
	s.failDescriptors = true
	tracker := NewTracker("rec-1", nil, w, testLogger())

	got, report := tracker.OnComponent(context.Background(), bridge.FieldInfo{Key: "photo"})
	assert.Equal(t, Failed, got)
	assert.Error(t, report.Err())
}
