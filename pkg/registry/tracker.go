package registry

import (
	"context"

	"github.com/mwantia/fieldsync/pkg/bridge"
	"github.com/mwantia/fieldsync/pkg/log"
)

// Discovery is what the tracker did with a discovered component.
type Discovery int

const (
	// Registered means a new descriptor was written for the field.
	Registered Discovery = iota
	// AlreadyStored means the record already held a descriptor for the key.
	AlreadyStored
	// Deferred means the field is conditional and waits for the terminal message.
	Deferred
	// SkippedGridField means the label belongs to a known grid.
	SkippedGridField
	// SkippedDuplicate means the key was already discovered in this session.
	SkippedDuplicate
	// Failed means the existence check or descriptor write failed.
	Failed
)

func (d Discovery) String() string {
	switch d {
	case Registered:
		return "registered"
	case AlreadyStored:
		return "already-stored"
	case Deferred:
		return "deferred"
	case SkippedGridField:
		return "skipped-grid-field"
	case SkippedDuplicate:
		return "skipped-duplicate"
	default:
		return "failed"
	}
}

// Tracker accumulates the discovery messages of one session. It is not
// shared between sessions and not safe for concurrent use; messages are fed
// to it one at a time.
type Tracker struct {
	recordID string
	prior    *bridge.Submission
	writer   *Writer
	log      log.LoggerService

	grids      []GridDescriptor
	gridKeys   map[string]struct{}
	gridLabels map[string]struct{}
	seen       map[string]struct{}
	others     []FieldDescriptor
	pending    []FieldDescriptor
}

// NewTracker builds the tracker for recordID. prior is the submission the
// session started from and may be nil.
func NewTracker(recordID string, prior *bridge.Submission, writer *Writer, logger log.LoggerService) *Tracker {
	return &Tracker{
		recordID:   recordID,
		prior:      prior,
		writer:     writer,
		log:        logger,
		gridKeys:   make(map[string]struct{}),
		gridLabels: make(map[string]struct{}),
		seen:       make(map[string]struct{}),
	}
}

// OnDatagrid records a grid. Repeated reports of the same grid are ignored.
func (t *Tracker) OnDatagrid(info bridge.GridInfo) {
	grid := NewGridDescriptor(info)
	if _, ok := t.gridKeys[grid.GridKey]; ok {
		return
	}
	t.gridKeys[grid.GridKey] = struct{}{}
	t.grids = append(t.grids, grid)
	if grid.Label != "" {
		t.gridLabels[grid.Label] = struct{}{}
	}
	t.log.Debug("Discovered grid '%s' with file field '%s'", grid.GridKey, grid.GridComponents)
}

// OnComponent handles one discovered file field. Non-conditional fields are
// registered right away together with the files of the prior submission;
// conditional fields are held until the terminal message.
func (t *Tracker) OnComponent(ctx context.Context, info bridge.FieldInfo) (Discovery, WriteReport) {
	desc := NewFieldDescriptor(info)

	if _, ok := t.gridLabels[desc.Label]; ok && desc.Label != "" {
		t.log.Debug("Skipping '%s': label '%s' belongs to a grid", desc.Key, desc.Label)
		return SkippedGridField, WriteReport{}
	}
	if _, ok := t.seen[desc.Key]; ok {
		return SkippedDuplicate, WriteReport{}
	}
	t.seen[desc.Key] = struct{}{}

	if desc.Condition != "" {
		t.pending = append(t.pending, desc)
		t.log.Debug("Deferred conditional field '%s'", desc.Key)
		return Deferred, WriteReport{}
	}

	t.others = append(t.others, desc)

	var priorData map[string]any
	if t.prior != nil {
		priorData = t.prior.Data
	}

	created, report := t.writer.Persist(ctx, t.recordID, desc, bridge.FilesAt(priorData, desc.Key))
	switch {
	case len(report.Failures) > 0 && !created:
		return Failed, report
	case created:
		t.log.Debug("Registered field '%s' (%s) for record '%s'", desc.Key, desc.ID, t.recordID)
		return Registered, report
	default:
		return AlreadyStored, report
	}
}

// DropOther removes every tracked top-level field with key from the pool of
// other fields and returns how many were removed. Descriptors already
// written for those fields stay in the store; see Writer.PurgeEmpty.
func (t *Tracker) DropOther(key string) int {
	kept := t.others[:0]
	dropped := 0
	for _, desc := range t.others {
		if desc.Key == key {
			dropped++
			continue
		}
		kept = append(kept, desc)
	}
	t.others = kept
	return dropped
}

func (t *Tracker) Grids() []GridDescriptor {
	return append([]GridDescriptor(nil), t.grids...)
}

func (t *Tracker) Others() []FieldDescriptor {
	return append([]FieldDescriptor(nil), t.others...)
}

func (t *Tracker) Pending() []FieldDescriptor {
	return append([]FieldDescriptor(nil), t.pending...)
}
