package cache

import (
	"context"
	"path/filepath"
	"strings"

	"tunevault/logger"
	"tunevault/model"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the artifact directory and evicts hot-layer index
// entries when backing files disappear, so a stale record is noticed
// before the next lookup instead of at it. The persistent record is left
// alone; Lookup handles the authoritative re-check.
type Watcher struct {
	index *Index
	dir   string
}

// NewWatcher creates a watcher over dir.
func NewWatcher(index *Index, dir string) *Watcher {
	return &Watcher{index: index, dir: dir}
}

// Run watches until ctx is cancelled. Errors are logged, not fatal; the
// watcher is an optimization, not a correctness requirement.
func (w *Watcher) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("artifact watcher unavailable", logger.ErrorField(err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		logger.Warn("failed to watch artifact directory",
			logger.String("dir", w.dir),
			logger.ErrorField(err))
		return
	}

	logger.Info("watching artifact directory", logger.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			assetID, variant, ok := parseArtifactName(event.Name)
			if !ok {
				continue
			}
			logger.Info("artifact file removed, evicting index entry",
				logger.String("assetId", assetID),
				logger.String("variant", string(variant)),
				logger.String("path", event.Name))
			w.index.Evict(ctx, assetID, variant)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("artifact watcher error", logger.ErrorField(err))
		}
	}
}

// parseArtifactName maps a canonical artifact filename (<asset_id>.mp3 or
// <asset_id>.mp4) back to its cache key. Anything else is ignored.
func parseArtifactName(path string) (string, model.Variant, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	assetID := strings.TrimSuffix(base, ext)
	if assetID == "" {
		return "", "", false
	}
	switch ext {
	case ".mp3":
		return assetID, model.VariantAudio, true
	case ".mp4":
		return assetID, model.VariantVideo, true
	default:
		return "", "", false
	}
}
