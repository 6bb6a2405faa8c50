package repository

import (
	"context"
	"sort"
	"sync"

	"tunevault/errs"
	"tunevault/model"
)

// MemoryCacheRecordRepository is an in-memory CacheRecordRepository with
// the same insert-if-absent semantics as the MySQL implementation. It
// backs tests and database-less development runs.
type MemoryCacheRecordRepository struct {
	mu      sync.Mutex
	records map[string]*model.CacheRecord
	nextID  int64
}

// NewMemoryCacheRecordRepository creates an empty in-memory repository.
func NewMemoryCacheRecordRepository() *MemoryCacheRecordRepository {
	return &MemoryCacheRecordRepository{records: make(map[string]*model.CacheRecord)}
}

func recordKey(assetID string, variant model.Variant) string {
	return assetID + "|" + string(variant)
}

func (r *MemoryCacheRecordRepository) Find(ctx context.Context, assetID string, variant model.Variant) (*model.CacheRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[recordKey(assetID, variant)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *MemoryCacheRecordRepository) InsertIfAbsent(ctx context.Context, record *model.CacheRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey(record.AssetID, record.Variant)
	if _, exists := r.records[key]; exists {
		return false, nil
	}
	r.nextID++
	record.ID = r.nextID
	copied := *record
	r.records[key] = &copied
	return true, nil
}

func (r *MemoryCacheRecordRepository) All(ctx context.Context) ([]*model.CacheRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]*model.CacheRecord, 0, len(r.records))
	for _, record := range r.records {
		copied := *record
		records = append(records, &copied)
	}
	// Ids are assigned in insert order, matching the store's
	// creation-time ordering.
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (r *MemoryCacheRecordRepository) DeleteAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.records))
	r.records = make(map[string]*model.CacheRecord)
	return n, nil
}
