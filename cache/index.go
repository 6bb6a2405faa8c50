package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"tunevault/errs"
	"tunevault/logger"
	"tunevault/model"
	"tunevault/repository"

	"github.com/go-redis/redis/v8"
)

// Index answers "is (asset, variant) present with a live backing file".
// It layers a Redis hot cache over the persistent store, and always
// re-verifies file existence before trusting a hit: record deletion and
// file deletion are not transactional with each other, so a record whose
// file vanished is treated as a miss, not an error.
type Index struct {
	repo  repository.CacheRecordRepository
	redis *redis.Client // nil disables the hot layer
	ttl   time.Duration
}

// NewIndex creates a cache index. A nil Redis client degrades to store
// plus filesystem checks only.
func NewIndex(repo repository.CacheRecordRepository, redisClient *redis.Client, ttl time.Duration) *Index {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Index{repo: repo, redis: redisClient, ttl: ttl}
}

// IndexKey is the Redis key for one (asset, variant) entry.
func IndexKey(assetID string, variant model.Variant) string {
	return fmt.Sprintf("vault:record:%s:%s", assetID, variant)
}

// Lookup returns the record for the key if it exists and its artifact is
// still on disk. A stale record is evicted from the hot layer and
// reported as a miss so the caller re-fetches.
func (ix *Index) Lookup(ctx context.Context, assetID string, variant model.Variant) (*model.CacheRecord, bool) {
	if record, ok := ix.hotGet(ctx, assetID, variant); ok {
		if fileExists(record.LocalPath) {
			return record, true
		}
		ix.Evict(ctx, assetID, variant)
	}

	record, err := ix.repo.Find(ctx, assetID, variant)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			logger.Warn("cache record lookup failed",
				logger.String("assetId", assetID),
				logger.String("variant", string(variant)),
				logger.ErrorField(err))
		}
		return nil, false
	}

	if !fileExists(record.LocalPath) {
		// Classic stale pointer: the record survived a file deletion or a
		// bulk clear ran without removing artifacts. Recover by re-fetching.
		logger.Warn("cache record points at missing file, treating as miss",
			logger.String("assetId", assetID),
			logger.String("variant", string(variant)),
			logger.String("localPath", record.LocalPath))
		ix.Evict(ctx, assetID, variant)
		return nil, false
	}

	ix.Store(ctx, record)
	return record, true
}

// Store writes the record into the hot layer. Best effort only.
func (ix *Index) Store(ctx context.Context, record *model.CacheRecord) {
	if ix.redis == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := ix.redis.Set(ctx, IndexKey(record.AssetID, record.Variant), payload, ix.ttl).Err(); err != nil {
		logger.Debug("failed to store index entry in redis", logger.ErrorField(err))
	}
}

// Evict drops the hot-layer entry for the key. Best effort only.
func (ix *Index) Evict(ctx context.Context, assetID string, variant model.Variant) {
	if ix.redis == nil {
		return
	}
	if err := ix.redis.Del(ctx, IndexKey(assetID, variant)).Err(); err != nil {
		logger.Debug("failed to evict index entry from redis", logger.ErrorField(err))
	}
}

func (ix *Index) hotGet(ctx context.Context, assetID string, variant model.Variant) (*model.CacheRecord, bool) {
	if ix.redis == nil {
		return nil, false
	}
	payload, err := ix.redis.Get(ctx, IndexKey(assetID, variant)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("redis index lookup failed", logger.ErrorField(err))
		}
		return nil, false
	}
	var record model.CacheRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, false
	}
	return &record, true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
