package model

import "time"

// Variant is the requested media kind. It determines the transcode target
// and the output container.
type Variant string

const (
	VariantAudio Variant = "audio"
	VariantVideo Variant = "video"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v == VariantAudio || v == VariantVideo
}

// Ext returns the canonical artifact extension for the variant.
func (v Variant) Ext() string {
	if v == VariantVideo {
		return ".mp4"
	}
	return ".mp3"
}

// AssetReference identifies a remote media item as returned by the search
// provider. It is immutable and never persisted on its own.
type AssetReference struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	SourceURL string `json:"sourceUrl"`
}

// CacheRecord is the persisted outcome of one successful fetch. The
// composite unique index guarantees at most one record per (asset,
// variant) key; a record is created exactly once and never mutated.
// Records are only destroyed by an explicit bulk clear, which does NOT
// delete the backing files, so LocalPath must be re-verified against the
// filesystem before being trusted.
type CacheRecord struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	AssetID   string    `json:"assetId" gorm:"size:64;uniqueIndex:idx_asset_variant;not null"`
	Variant   Variant   `json:"variant" gorm:"size:8;uniqueIndex:idx_asset_variant;not null"`
	Title     string    `json:"title" gorm:"size:512"`
	SourceURL string    `json:"sourceUrl" gorm:"size:1024"`
	LocalPath string    `json:"localPath" gorm:"size:767;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName keeps the collection name stable across gorm naming changes.
func (CacheRecord) TableName() string { return "cache_records" }

// LocalArtifact is what the fetch pipeline hands to callers: a playable
// local file plus its display title.
type LocalArtifact struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// QueueItem is one pending entry in a session's playback queue. Items
// behind the head are inert data; only the head is ever streamed.
type QueueItem struct {
	LocalPath string `json:"localPath"`
	Title     string `json:"title"`
}
