package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/fieldsync/pkg/db/migrations"
	"github.com/mwantia/fieldsync/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements QueueStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

// NewSQLiteStore creates a new SQLite-backed queue store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Connect initializes the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs all pending versioned migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Descriptor operations

func (s *SQLiteStore) DescriptorExists(ctx context.Context, recordID, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Descriptor{}).
		Where("record_id = ? AND field_key = ? AND is_data_grid = ?", recordID, key, false).
		Count(&count).Error
	return count > 0, err
}

func (s *SQLiteStore) GridRowExists(ctx context.Context, recordID, gridKey, key string, row int) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Descriptor{}).
		Where("record_id = ? AND grid_key = ? AND field_key = ? AND row_index = ? AND is_data_grid = ?", recordID, gridKey, key, row, true).
		Count(&count).Error
	return count > 0, err
}

func (s *SQLiteStore) CreateDescriptor(ctx context.Context, descriptor *models.Descriptor) error {
	return s.db.WithContext(ctx).Omit("Files").Create(descriptor).Error
}

func (s *SQLiteStore) GetDescriptor(ctx context.Context, recordID, key string) (*models.Descriptor, error) {
	var descriptor models.Descriptor
	err := s.db.WithContext(ctx).
		Where("record_id = ? AND field_key = ? AND is_data_grid = ?", recordID, key, false).
		First(&descriptor).Error
	if err != nil {
		return nil, err
	}
	return &descriptor, nil
}

func (s *SQLiteStore) ListDescriptors(ctx context.Context, recordID string) ([]models.Descriptor, error) {
	var descriptors []models.Descriptor
	err := s.db.WithContext(ctx).
		Preload("Files").
		Where("record_id = ?", recordID).
		Order("id ASC").
		Find(&descriptors).Error
	return descriptors, err
}

// DeleteDescriptors removes every descriptor registered under key for the
// record, including grid rows, together with their file records.
func (s *SQLiteStore) DeleteDescriptors(ctx context.Context, recordID, key string) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Descriptor{}).
			Where("record_id = ? AND field_key = ?", recordID, key).
			Pluck("descriptor_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("form_id = ? AND file_id IN ?", recordID, ids).
			Delete(&models.FileRecord{}).Error; err != nil {
			return err
		}

		result := tx.Where("record_id = ? AND descriptor_id IN ?", recordID, ids).
			Delete(&models.Descriptor{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}

// DeleteDescriptor removes a single descriptor and its file records.
func (s *SQLiteStore) DeleteDescriptor(ctx context.Context, recordID, descriptorID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("form_id = ? AND file_id = ?", recordID, descriptorID).
			Delete(&models.FileRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("record_id = ? AND descriptor_id = ?", recordID, descriptorID).
			Delete(&models.Descriptor{}).Error
	})
}

// File record operations

func (s *SQLiteStore) CreateFileRecord(ctx context.Context, file *models.FileRecord) error {
	return s.db.WithContext(ctx).Create(file).Error
}

func (s *SQLiteStore) ListFileRecords(ctx context.Context, recordID, fileID string) ([]models.FileRecord, error) {
	var files []models.FileRecord
	query := s.db.WithContext(ctx).Where("form_id = ?", recordID)

	if fileID != "" {
		query = query.Where("file_id = ?", fileID)
	}

	err := query.Order("id ASC").Find(&files).Error
	return files, err
}

func (s *SQLiteStore) CountFileRecords(ctx context.Context, recordID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.FileRecord{}).
		Where("form_id = ?", recordID).
		Count(&count).Error
	return count, err
}

// Submission snapshot operations

func (s *SQLiteStore) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	return s.db.WithContext(ctx).Create(submission).Error
}

func (s *SQLiteStore) LatestSubmission(ctx context.Context, recordID string) (*models.Submission, error) {
	var submission models.Submission
	err := s.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("id DESC").
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}
