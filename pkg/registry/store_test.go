package registry

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	config "github.com/mwantia/fieldsync/internal/config/server"
	"github.com/mwantia/fieldsync/pkg/db/models"
	"github.com/mwantia/fieldsync/pkg/db/store"
	"github.com/mwantia/fieldsync/pkg/log"
)

var errDisk = errors.New("disk I/O error")

// memoryStore is an in-memory Store with switchable failures.
type memoryStore struct {
	mu          sync.Mutex
	descriptors []models.Descriptor
	files       []models.FileRecord

	failFiles       map[string]bool
	failDescriptors bool
	failExists      bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{failFiles: make(map[string]bool)}
}

func testLogger() log.LoggerService {
	return log.NewLoggerServiceWithWriter("test", config.LogServerConfig{Level: "ERROR"}, io.Discard)
}

func newTestWriter(t *testing.T) (*Writer, *memoryStore) {
	t.Helper()
	s := newMemoryStore()
	return NewWriter(s, testLogger()), s
}

func (m *memoryStore) DescriptorExists(_ context.Context, recordID, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failExists {
		return false, errDisk
	}
	for _, d := range m.descriptors {
		if d.RecordID == recordID && d.FieldKey == key && !d.IsDataGrid {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) GridRowExists(_ context.Context, recordID, gridKey, key string, row int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failExists {
		return false, errDisk
	}
	for _, d := range m.descriptors {
		if d.RecordID == recordID && d.GridKey == gridKey && d.FieldKey == key && d.RowIndex == row && d.IsDataGrid {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) CreateDescriptor(_ context.Context, descriptor *models.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failDescriptors {
		return errDisk
	}
	descriptor.ID = uint(len(m.descriptors) + 1)
	m.descriptors = append(m.descriptors, *descriptor)
	return nil
}

func (m *memoryStore) GetDescriptor(_ context.Context, recordID, key string) (*models.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.descriptors {
		if d.RecordID == recordID && d.FieldKey == key && !d.IsDataGrid {
			found := d
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memoryStore) DeleteDescriptors(_ context.Context, recordID, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[string]struct{})
	kept := m.descriptors[:0]
	for _, d := range m.descriptors {
		if d.RecordID == recordID && d.FieldKey == key {
			ids[d.DescriptorID] = struct{}{}
			continue
		}
		kept = append(kept, d)
	}
	m.descriptors = kept

	files := m.files[:0]
	for _, f := range m.files {
		if _, ok := ids[f.FileID]; ok && f.FormID == recordID {
			continue
		}
		files = append(files, f)
	}
	m.files = files

	return int64(len(ids)), nil
}

func (m *memoryStore) DeleteDescriptor(_ context.Context, recordID, descriptorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.descriptors[:0]
	for _, d := range m.descriptors {
		if d.RecordID == recordID && d.DescriptorID == descriptorID {
			continue
		}
		kept = append(kept, d)
	}
	m.descriptors = kept

	files := m.files[:0]
	for _, f := range m.files {
		if f.FormID == recordID && f.FileID == descriptorID {
			continue
		}
		files = append(files, f)
	}
	m.files = files
	return nil
}

func (m *memoryStore) CreateFileRecord(_ context.Context, file *models.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFiles[file.Name] {
		return errDisk
	}
	file.ID = uint(len(m.files) + 1)
	m.files = append(m.files, *file)
	return nil
}

func (m *memoryStore) ListFileRecords(_ context.Context, recordID, fileID string) ([]models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.FileRecord
	for _, f := range m.files {
		if f.FormID == recordID && (fileID == "" || f.FileID == fileID) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memoryStore) fileNames(descriptorID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for _, f := range m.files {
		if f.FileID == descriptorID {
			names = append(names, f.Name)
		}
	}
	return names
}
