package repository

import (
	"context"
	"errors"
	"fmt"

	"tunevault/errs"
	"tunevault/logger"
	"tunevault/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheRecordRepository is the typed interface over the persistent cache
// record collection, keyed by (asset id, variant).
type CacheRecordRepository interface {
	// Find returns the record for the key, or errs.ErrNotFound.
	Find(ctx context.Context, assetID string, variant model.Variant) (*model.CacheRecord, error)

	// InsertIfAbsent persists the record unless one already exists for its
	// key. It reports whether the insert happened; losing the race to a
	// concurrent insert is an expected outcome, never an error.
	InsertIfAbsent(ctx context.Context, record *model.CacheRecord) (bool, error)

	// All returns every record, ordered by creation time.
	All(ctx context.Context) ([]*model.CacheRecord, error)

	// DeleteAll bulk-deletes every record and returns how many were
	// removed. Backing files are NOT deleted; callers own that hazard.
	DeleteAll(ctx context.Context) (int64, error)
}

// mysqlCacheRecordRepository implements CacheRecordRepository on GORM/MySQL.
type mysqlCacheRecordRepository struct {
	db *gorm.DB
}

// NewMySQLCacheRecordRepository creates a MySQL-backed repository.
func NewMySQLCacheRecordRepository(db *gorm.DB) CacheRecordRepository {
	return &mysqlCacheRecordRepository{db: db}
}

func (r *mysqlCacheRecordRepository) Find(ctx context.Context, assetID string, variant model.Variant) (*model.CacheRecord, error) {
	var record model.CacheRecord
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND variant = ?", assetID, variant).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache record %s/%s: %w", assetID, variant, err)
	}
	return &record, nil
}

func (r *mysqlCacheRecordRepository) InsertIfAbsent(ctx context.Context, record *model.CacheRecord) (bool, error) {
	// ON CONFLICT DO NOTHING on the (asset_id, variant) unique index; the
	// store provides the atomicity, no external lock is needed.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert cache record %s/%s: %w", record.AssetID, record.Variant, result.Error)
	}
	if result.RowsAffected == 0 {
		logger.Debug("cache record already exists",
			logger.String("assetId", record.AssetID),
			logger.String("variant", string(record.Variant)))
		return false, nil
	}
	return true, nil
}

func (r *mysqlCacheRecordRepository) All(ctx context.Context) ([]*model.CacheRecord, error) {
	var records []*model.CacheRecord
	if err := r.db.WithContext(ctx).Order("created_at").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list cache records: %w", err)
	}
	return records, nil
}

func (r *mysqlCacheRecordRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.CacheRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear cache records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
