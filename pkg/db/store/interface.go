package store

import (
	"context"

	"github.com/mwantia/fieldsync/pkg/db/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = gorm.ErrRecordNotFound

// QueueStore defines the local record store holding the deferred upload
// queue. Writes are insert or delete only; nothing is updated in place.
type QueueStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Descriptor operations
	DescriptorExists(ctx context.Context, recordID, key string) (bool, error)
	GridRowExists(ctx context.Context, recordID, gridKey, key string, row int) (bool, error)
	CreateDescriptor(ctx context.Context, descriptor *models.Descriptor) error
	GetDescriptor(ctx context.Context, recordID, key string) (*models.Descriptor, error)
	ListDescriptors(ctx context.Context, recordID string) ([]models.Descriptor, error)
	DeleteDescriptors(ctx context.Context, recordID, key string) (int64, error)
	DeleteDescriptor(ctx context.Context, recordID, descriptorID string) error

	// File record operations
	CreateFileRecord(ctx context.Context, file *models.FileRecord) error
	ListFileRecords(ctx context.Context, recordID, fileID string) ([]models.FileRecord, error)
	CountFileRecords(ctx context.Context, recordID string) (int64, error)

	// Submission snapshot operations
	CreateSubmission(ctx context.Context, submission *models.Submission) error
	LatestSubmission(ctx context.Context, recordID string) (*models.Submission, error)
}
