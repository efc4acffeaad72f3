package domain

import (
	"context"
	"time"
)

// EnumeratePredicate narrows an asset enumeration.
type EnumeratePredicate struct {
	// CreatedAfter excludes assets created at or before this instant when
	// non-zero. Used to bound the initial load window.
	CreatedAfter time.Time

	// MediaTypes restricts the enumeration; nil means all types.
	MediaTypes []MediaType
}

// AssetSource provides access to the underlying media library. Implementations
// wrap slow, rate-limited, occasionally unreliable backends; the engine never
// assumes a call is cheap.
type AssetSource interface {
	// Enumerate lists asset handles matching the predicate, newest first.
	Enumerate(ctx context.Context, pred EnumeratePredicate) ([]AssetHandle, error)

	// FetchImage resolves a decoded artifact for (handle, size). The returned
	// channel may deliver degraded previews before the final update and is
	// closed after the final update is sent.
	FetchImage(ctx context.Context, handle AssetHandle, size Size) <-chan FetchUpdate

	// FetchVideoThumb resolves a poster frame for a video asset with the same
	// stream contract as FetchImage.
	FetchVideoThumb(ctx context.Context, handle AssetHandle, size Size) <-chan FetchUpdate

	// FetchVideoURL resolves a playable URL for a video asset.
	FetchVideoURL(ctx context.Context, handle AssetHandle) (string, error)

	// DeleteAssets permanently removes assets from the source. Irreversible.
	DeleteAssets(ctx context.Context, ids []string) error
}

// ArtifactCache is a bounded map from cache keys to decoded artifacts with
// a deterministic eviction policy.
type ArtifactCache interface {
	Get(key CacheKey) (Artifact, bool)
	Put(key CacheKey, a Artifact, cost int)
	Remove(key CacheKey)
	Invalidate(assetID string)
}

// Geocoder resolves a coordinate to a human-readable place label.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, coord Coordinate) (string, error)
}

// KVStore is the durable key-value store behind PersistenceSync. Each Set is
// a single atomic replace.
type KVStore interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// LabelEvent announces one resolved geocode result. The catalog consumes it
// to patch the label onto every asset sharing the coordinate.
type LabelEvent struct {
	Coordinate Coordinate
	Label      string
}
