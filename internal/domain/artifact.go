package domain

import "fmt"

// Size is a requested render size in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Variant distinguishes what kind of artifact a cache key refers to.
type Variant int

const (
	VariantImage Variant = iota
	VariantVideoThumb
)

// String returns a human-readable representation of the variant
func (v Variant) String() string {
	switch v {
	case VariantVideoThumb:
		return "videothumb"
	default:
		return "image"
	}
}

// CacheKey identifies one decoded artifact: (asset, size, variant).
type CacheKey struct {
	AssetID string
	Size    Size
	Variant Variant
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Variant, k.AssetID, k.Size)
}

// Quality marks whether an artifact is the final render or an intermediate
// lower-quality preview.
type Quality int

const (
	QualityFull Quality = iota
	QualityDegraded
)

// PlaceholderKind distinguishes the sentinel artifacts substituted when the
// real one cannot be produced.
type PlaceholderKind int

const (
	// PlaceholderNone marks a real artifact
	PlaceholderNone PlaceholderKind = iota

	// PlaceholderCloud signals a cloud-specific or network failure
	PlaceholderCloud

	// PlaceholderBroken signals a generic failure or exhausted retries
	PlaceholderBroken

	// PlaceholderRetry signals a timeout; the next resolve will refetch
	PlaceholderRetry
)

// String returns a human-readable representation of the placeholder kind
func (p PlaceholderKind) String() string {
	switch p {
	case PlaceholderCloud:
		return "cloud"
	case PlaceholderBroken:
		return "broken"
	case PlaceholderRetry:
		return "retry"
	default:
		return "none"
	}
}

// Artifact is one decoded render of an asset, or a placeholder standing in
// for one. Decoding happens inside the asset source; the engine only moves
// artifacts around.
type Artifact struct {
	AssetID     string
	Data        []byte
	Quality     Quality
	Placeholder PlaceholderKind
}

// IsPlaceholder reports whether this artifact is a sentinel, not real media.
func (a Artifact) IsPlaceholder() bool { return a.Placeholder != PlaceholderNone }

// Cost is the cache accounting weight of the artifact.
func (a Artifact) Cost() int { return len(a.Data) }

// Placeholder builds the sentinel artifact of the given kind for an asset.
func Placeholder(assetID string, kind PlaceholderKind) Artifact {
	return Artifact{AssetID: assetID, Quality: QualityFull, Placeholder: kind}
}

// FetchUpdate is one emission from an asset source image fetch: zero or more
// degraded previews, then exactly one final update carrying the full-quality
// artifact or an error.
type FetchUpdate struct {
	Artifact Artifact
	Final    bool
	Err      error // set only on a final update
}
