package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tunevault/cache"
	"tunevault/errs"
	"tunevault/logger"
	"tunevault/model"
	"tunevault/repository"

	"golang.org/x/sync/singleflight"
)

// ArchiveFunc mirrors a finished artifact to secondary storage. It runs
// off the request path and must tolerate being handed the same path twice.
type ArchiveFunc func(ctx context.Context, localPath string)

// Pipeline turns an asset reference plus variant into a local artifact,
// downloading and persisting at most once per key. Concurrent fetches for
// the identical key collapse into one provider call via singleflight;
// losing the metadata insert race to another process is treated as
// success, never overwritten.
type Pipeline struct {
	index      *cache.Index
	repo       repository.CacheRecordRepository
	downloader Downloader
	outDir     string
	archive    ArchiveFunc
	group      singleflight.Group
}

// NewPipeline creates a fetch pipeline. archive may be nil.
func NewPipeline(index *cache.Index, repo repository.CacheRecordRepository, downloader Downloader, outDir string, archive ArchiveFunc) *Pipeline {
	return &Pipeline{
		index:      index,
		repo:       repo,
		downloader: downloader,
		outDir:     outDir,
		archive:    archive,
	}
}

func fetchKey(assetID string, variant model.Variant) string {
	return assetID + "|" + string(variant)
}

// Cached reports whether a valid local artifact already exists for the
// key, without touching the network.
func (p *Pipeline) Cached(ctx context.Context, assetID string, variant model.Variant) bool {
	_, ok := p.index.Lookup(ctx, assetID, variant)
	return ok
}

// Fetch returns a playable local artifact for ref/variant. Cache hits are
// served without network access; a record whose backing file vanished
// counts as a miss and triggers a fresh download. Provider failures come
// back as *errs.FetchError and leave no partial record behind.
func (p *Pipeline) Fetch(ctx context.Context, ref model.AssetReference, variant model.Variant) (*model.LocalArtifact, error) {
	if !variant.Valid() {
		return nil, fmt.Errorf("unknown variant %q", variant)
	}

	v, err, shared := p.group.Do(fetchKey(ref.ID, variant), func() (interface{}, error) {
		return p.fetchOne(ctx, ref, variant)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("fetch collapsed into in-flight download",
			logger.String("assetId", ref.ID),
			logger.String("variant", string(variant)))
	}
	return v.(*model.LocalArtifact), nil
}

func (p *Pipeline) fetchOne(ctx context.Context, ref model.AssetReference, variant model.Variant) (*model.LocalArtifact, error) {
	if record, ok := p.index.Lookup(ctx, ref.ID, variant); ok {
		logger.Debug("cache hit",
			logger.String("assetId", ref.ID),
			logger.String("variant", string(variant)))
		return &model.LocalArtifact{Path: record.LocalPath, Title: record.Title}, nil
	}

	result, err := p.downloader.Download(ctx, ref.SourceURL, variant, p.outDir)
	if err != nil {
		return nil, &errs.FetchError{AssetID: ref.ID, Cause: err}
	}

	title := result.Title
	if title == "" {
		title = ref.Title
	}
	if result.AssetID != "" && result.AssetID != ref.ID {
		// The provider canonicalized the id. The record keeps the
		// search-side id so repeat queries keep hitting, which means the
		// artifact must carry that id too or the watcher would evict a
		// hot-layer key that was never stored.
		canonical := filepath.Join(p.outDir, ref.ID+filepath.Ext(result.LocalPath))
		if err := os.Rename(result.LocalPath, canonical); err != nil {
			logger.Warn("failed to rename artifact to its cache key",
				logger.String("searchId", ref.ID),
				logger.String("canonicalId", result.AssetID),
				logger.ErrorField(err))
		} else {
			result.LocalPath = canonical
		}
	}

	record := &model.CacheRecord{
		AssetID:   ref.ID,
		Variant:   variant,
		Title:     title,
		SourceURL: ref.SourceURL,
		LocalPath: result.LocalPath,
	}

	inserted, err := p.repo.InsertIfAbsent(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to persist cache record for %s/%s: %w", ref.ID, variant, err)
	}
	if !inserted {
		// Another fetch won the insert race; its record is authoritative.
		existing, ferr := p.repo.Find(ctx, ref.ID, variant)
		if ferr == nil {
			record = existing
		} else if !errors.Is(ferr, errs.ErrNotFound) {
			logger.Warn("failed to read winning cache record",
				logger.String("assetId", ref.ID),
				logger.ErrorField(ferr))
		}
	}

	p.index.Store(ctx, record)

	if p.archive != nil {
		go p.archive(context.WithoutCancel(ctx), record.LocalPath)
	}

	logger.Info("fetch complete",
		logger.String("assetId", ref.ID),
		logger.String("variant", string(variant)),
		logger.String("path", record.LocalPath),
		logger.Bool("insertedRecord", inserted))

	return &model.LocalArtifact{Path: record.LocalPath, Title: record.Title}, nil
}
