package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/fieldsync/pkg/bridge"
	"github.com/mwantia/fieldsync/pkg/db/models"
	"github.com/mwantia/fieldsync/pkg/db/store"
	"github.com/mwantia/fieldsync/pkg/log"
)

// Store is the part of the record store the writer depends on.
type Store interface {
	DescriptorExists(ctx context.Context, recordID, key string) (bool, error)
	GridRowExists(ctx context.Context, recordID, gridKey, key string, row int) (bool, error)
	CreateDescriptor(ctx context.Context, descriptor *models.Descriptor) error
	GetDescriptor(ctx context.Context, recordID, key string) (*models.Descriptor, error)
	DeleteDescriptors(ctx context.Context, recordID, key string) (int64, error)
	DeleteDescriptor(ctx context.Context, recordID, descriptorID string) error
	CreateFileRecord(ctx context.Context, file *models.FileRecord) error
	ListFileRecords(ctx context.Context, recordID, fileID string) ([]models.FileRecord, error)
}

// StorageWriteError reports one failed write against the record store.
type StorageWriteError struct {
	Op       string
	RecordID string
	Key      string
	Err      error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("registry: %s %s/%s: %v", e.Op, e.RecordID, e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error {
	return e.Err
}

// WriteReport collects the outcome of a batch of writes. Failures never stop
// the remaining writes of the batch.
type WriteReport struct {
	Descriptors int
	Files       int
	Purged      int64
	Failures    []*StorageWriteError
}

func (r *WriteReport) fail(op, recordID, key string, err error) {
	r.Failures = append(r.Failures, &StorageWriteError{Op: op, RecordID: recordID, Key: key, Err: err})
}

// Merge adds other's counters and failures to r.
func (r *WriteReport) Merge(other WriteReport) {
	r.Descriptors += other.Descriptors
	r.Files += other.Files
	r.Purged += other.Purged
	r.Failures = append(r.Failures, other.Failures...)
}

// Err joins all failures, or returns nil when every write succeeded.
func (r WriteReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Writer is the only component that writes descriptors and file records.
type Writer struct {
	store Store
	log   log.LoggerService
}

func NewWriter(s Store, logger log.LoggerService) *Writer {
	return &Writer{store: s, log: logger}
}

// Persist registers desc for recordID and queues one file record per file.
// It is a no-op when the record already holds a descriptor for the same key
// (or the same grid row). created reports whether a descriptor was written.
func (w *Writer) Persist(ctx context.Context, recordID string, desc FieldDescriptor, files []bridge.FileRef) (created bool, report WriteReport) {
	exists, err := w.exists(ctx, recordID, desc)
	if err != nil {
		report.fail("exists", recordID, desc.Key, err)
		return false, report
	}
	if exists {
		w.log.Debug("Descriptor '%s' already registered for record '%s'", desc.Key, recordID)
		return false, report
	}

	if err := w.store.CreateDescriptor(ctx, desc.Model(recordID)); err != nil {
		report.fail("insert descriptor", recordID, desc.Key, err)
		return false, report
	}
	report.Descriptors++

	report.Merge(w.writeFiles(ctx, recordID, desc, files))
	return true, report
}

// Append queues the files of an already registered top-level field that are
// not queued yet. Files are matched by URL and name.
func (w *Writer) Append(ctx context.Context, recordID, key string, files []bridge.FileRef) (report WriteReport) {
	if len(files) == 0 {
		return report
	}

	stored, err := w.store.GetDescriptor(ctx, recordID, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return report
		}
		report.fail("lookup descriptor", recordID, key, err)
		return report
	}

	queued, err := w.store.ListFileRecords(ctx, recordID, stored.DescriptorID)
	if err != nil {
		report.fail("list files", recordID, key, err)
		return report
	}

	seen := make(map[[2]string]struct{}, len(queued))
	for _, f := range queued {
		seen[[2]string{f.URL, f.Name}] = struct{}{}
	}

	var missing []bridge.FileRef
	for _, f := range files {
		id := [2]string{f.URL, f.Name}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, f)
	}

	return w.writeFiles(ctx, recordID, FromModel(*stored), missing)
}

// Purge removes every descriptor registered under key for recordID together
// with its queued files.
func (w *Writer) Purge(ctx context.Context, recordID, key string) (report WriteReport) {
	deleted, err := w.store.DeleteDescriptors(ctx, recordID, key)
	if err != nil {
		report.fail("purge", recordID, key, err)
		return report
	}
	if deleted > 0 {
		w.log.Debug("Purged %d descriptor(s) '%s' for record '%s'", deleted, key, recordID)
	}
	report.Purged = deleted
	return report
}

// PurgeEmpty removes the top-level descriptor of key when no file is queued
// for it. Grid rows under the same key are left alone.
func (w *Writer) PurgeEmpty(ctx context.Context, recordID, key string) (report WriteReport) {
	stored, err := w.store.GetDescriptor(ctx, recordID, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			report.fail("lookup descriptor", recordID, key, err)
		}
		return report
	}

	queued, err := w.store.ListFileRecords(ctx, recordID, stored.DescriptorID)
	if err != nil {
		report.fail("list files", recordID, key, err)
		return report
	}
	if len(queued) > 0 {
		return report
	}

	if err := w.store.DeleteDescriptor(ctx, recordID, stored.DescriptorID); err != nil {
		report.fail("purge", recordID, key, err)
		return report
	}
	w.log.Debug("Purged empty descriptor '%s' for record '%s'", key, recordID)
	report.Purged = 1
	return report
}

func (w *Writer) exists(ctx context.Context, recordID string, desc FieldDescriptor) (bool, error) {
	if desc.IsDataGrid {
		return w.store.GridRowExists(ctx, recordID, desc.GridKey, desc.Key, desc.Row)
	}
	return w.store.DescriptorExists(ctx, recordID, desc.Key)
}

func (w *Writer) writeFiles(ctx context.Context, recordID string, desc FieldDescriptor, files []bridge.FileRef) (report WriteReport) {
	for _, f := range files {
		row := &models.FileRecord{
			FormID:   recordID,
			FileID:   desc.ID,
			MimeType: f.MimeType,
			URL:      f.URL,
			Name:     f.Name,
			Size:     f.Size,
			Storage:  f.Storage,
		}
		if err := w.store.CreateFileRecord(ctx, row); err != nil {
			w.log.Warn("Failed to queue file '%s' for '%s': %v", f.Name, desc.Key, err)
			report.fail("insert file", recordID, desc.Key, err)
			continue
		}
		report.Files++
	}
	return report
}
