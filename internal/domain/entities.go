package domain

import (
	"fmt"
	"time"
)

// MediaType distinguishes content types
type MediaType int

const (
	MediaTypePhoto MediaType = iota
	MediaTypeVideo
)

// String returns a human-readable representation of the media type
func (m MediaType) String() string {
	switch m {
	case MediaTypePhoto:
		return "photo"
	case MediaTypeVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Status represents the triage disposition of an asset
type Status int

const (
	StatusPending Status = iota
	StatusSaved
	StatusDeleted
)

// String returns a human-readable representation of the status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSaved:
		return "saved"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// UnknownLocation is the label carried by assets whose coordinate has not
// been resolved, or whose geocode lookup failed.
const UnknownLocation = "Unknown Location"

// Coordinate is a lat/long pair from an asset's embedded metadata.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Key returns the 5-decimal rounded cache key for this coordinate.
// Five decimals (~1m precision) lets nearby shots share one geocode result.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.5f,%.5f", c.Latitude, c.Longitude)
}

// AssetHandle is the raw enumeration record from an asset source.
type AssetHandle struct {
	ID               string
	MediaType        MediaType
	CreationDate     time.Time
	ModificationDate time.Time
	Duration         time.Duration
	Location         *Coordinate // nil when the asset carries no location
}

// Asset is one photo or video tracked by the catalog. The catalog owns all
// mutation; everything else holds read-only references.
type Asset struct {
	ID               string
	MediaType        MediaType
	CreationDate     time.Time
	ModificationDate time.Time
	Duration         time.Duration
	Status           Status
	Location         *Coordinate

	// LocationLabel defaults to UnknownLocation until the geocode queue
	// patches a resolved label through the catalog.
	LocationLabel    string
	LocationResolved bool

	// Seq is the ingestion sequence number, used as a stable tie-break
	// when creation dates collide.
	Seq int64
}

// NewAsset builds an Asset from an enumeration handle in the pending state.
func NewAsset(h AssetHandle) *Asset {
	dur := h.Duration
	if h.MediaType != MediaTypeVideo {
		dur = 0
	}
	return &Asset{
		ID:               h.ID,
		MediaType:        h.MediaType,
		CreationDate:     h.CreationDate,
		ModificationDate: h.ModificationDate,
		Duration:         dur,
		Status:           StatusPending,
		Location:         h.Location,
		LocationLabel:    UnknownLocation,
	}
}

// Handle rebuilds the enumeration record for source fetches.
func (a *Asset) Handle() AssetHandle {
	return AssetHandle{
		ID:               a.ID,
		MediaType:        a.MediaType,
		CreationDate:     a.CreationDate,
		ModificationDate: a.ModificationDate,
		Duration:         a.Duration,
		Location:         a.Location,
	}
}

// Bucket returns the (year, month) grouping key for this asset.
func (a *Asset) Bucket() MonthYear {
	return MonthYear{Year: a.CreationDate.Year(), Month: int(a.CreationDate.Month())}
}

// FormattedDate returns the creation date in display format.
func (a *Asset) FormattedDate() string {
	if a.CreationDate.IsZero() {
		return "Unknown Date"
	}
	return a.CreationDate.Format("Jan 02, 2006 15:04")
}

// FormattedDuration returns the video duration as mm:ss, empty for photos.
func (a *Asset) FormattedDuration() string {
	if a.MediaType != MediaTypeVideo {
		return ""
	}
	total := int(a.Duration.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// MonthYear is a (year, month) grouping key for time-based filtering.
// Ephemeral: always recomputed from pending assets, never persisted.
type MonthYear struct {
	Year  int
	Month int
}

// ID returns a stable string identifier for the bucket.
func (m MonthYear) ID() string { return fmt.Sprintf("%d-%d", m.Year, m.Month) }

// Label returns the display name, e.g. "January 2024".
func (m MonthYear) Label() string {
	return fmt.Sprintf("%s %d", time.Month(m.Month).String(), m.Year)
}

// Before reports whether m is an older bucket than other.
func (m MonthYear) Before(other MonthYear) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// FilterKind selects the time predicate of a FilterSpec
type FilterKind int

const (
	FilterAll FilterKind = iota
	FilterMonthYear
	FilterThisWeek
)

// FilterSpec identifies a time-based view over pending assets.
type FilterSpec struct {
	Kind  FilterKind
	Month MonthYear // set when Kind == FilterMonthYear
}

// AllFilter returns the spec matching every pending asset.
func AllFilter() FilterSpec { return FilterSpec{Kind: FilterAll} }

// MonthFilter returns the spec for a single (year, month) bucket.
func MonthFilter(m MonthYear) FilterSpec {
	return FilterSpec{Kind: FilterMonthYear, Month: m}
}

// ThisWeekFilter returns the spec for [start of current week, now].
func ThisWeekFilter() FilterSpec { return FilterSpec{Kind: FilterThisWeek} }

// Label returns the display name for the filter.
func (f FilterSpec) Label() string {
	switch f.Kind {
	case FilterMonthYear:
		return f.Month.Label()
	case FilterThisWeek:
		return "This Week"
	default:
		return "All"
	}
}

// Matches reports whether an asset's creation date falls inside the spec's
// time window. now anchors the ThisWeek window.
func (f FilterSpec) Matches(a *Asset, now time.Time) bool {
	switch f.Kind {
	case FilterMonthYear:
		return a.Bucket() == f.Month
	case FilterThisWeek:
		start := StartOfWeek(now)
		return !a.CreationDate.Before(start) && !a.CreationDate.After(now)
	default:
		return true
	}
}

// StartOfWeek returns midnight on the Monday of now's week.
func StartOfWeek(now time.Time) time.Time {
	day := now.In(now.Location())
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the preceding Monday
	}
	start := day.AddDate(0, 0, -(weekday - 1))
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
}

// Progress summarizes triage completion for one filter's time window,
// counting assets of any status that match the window.
type Progress struct {
	RemainingPending int
	Total            int
	PercentComplete  float64
}

// MonthGroup is a month-labelled slice of assets for grouped display of the
// saved and deleted views.
type MonthGroup struct {
	Label  string // e.g. "January 2024"
	Month  MonthYear
	Assets []*Asset
}
