package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmcdole/sift/internal/domain"
	"github.com/mmcdole/sift/internal/geocode"
	"github.com/mmcdole/sift/internal/persist"
)

// Snapshot is an immutable view of the catalog published after every
// mutation. Readers consume it lock-free; only the catalog builds them.
type Snapshot struct {
	Filter    domain.FilterSpec
	HasFilter bool
	View      []*domain.Asset // pending assets matching Filter, display order
	Buckets   []domain.MonthYear

	Pending int
	Saved   int
	Deleted int

	Progress domain.Progress
	Complete bool

	// Ingesting is true between Load and the end of background ingestion.
	Ingesting bool
}

// Config carries the catalog's collaborators and policy knobs.
type Config struct {
	Source domain.AssetSource
	Sync   *persist.Sync
	Cache  domain.ArtifactCache // optional; invalidated on permanent delete
	Geo    *geocode.Queue       // optional; label resolution disabled when nil
	Logger *slog.Logger

	// InitialWindowMonths bounds the first enumeration; 0 means unbounded.
	InitialWindowMonths int

	// AllowDelete gates PermanentlyDelete against the source.
	AllowDelete bool
}

// Catalog is the authoritative store of all known assets and their triage
// disposition. All mutation happens behind one mutex; filter recomputation
// runs inside the same critical section, then a fresh Snapshot is published.
type Catalog struct {
	source      domain.AssetSource
	sync        *persist.Sync
	cache       domain.ArtifactCache
	geo         *geocode.Queue
	logger      *slog.Logger
	windowMons  int
	allowDelete bool

	now func() time.Time // injected for tests

	mu      sync.Mutex
	assets  map[string]*domain.Asset
	pending []*domain.Asset // source order, newest first
	saved   []*domain.Asset
	deleted []*domain.Asset
	byCoord map[string][]*domain.Asset

	filter    domain.FilterSpec
	hasFilter bool
	buckets   []domain.MonthYear
	view      []*domain.Asset

	lastPosition time.Time
	nextSeq      int64
	ingesting    bool

	warnMu   sync.Mutex
	warnings []string

	// persistMu orders durable writes; gen numbers drop stale snapshots
	// when scheduled writes complete out of order.
	persistMu   sync.Mutex
	persistGen  uint64
	persistDone uint64

	snapshot atomic.Pointer[Snapshot]

	subMu sync.Mutex
	subs  []chan Snapshot
}

// New creates an empty catalog. Call Load to ingest the library.
func New(cfg Config) *Catalog {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		source:      cfg.Source,
		sync:        cfg.Sync,
		cache:       cfg.Cache,
		geo:         cfg.Geo,
		logger:      logger,
		windowMons:  cfg.InitialWindowMonths,
		allowDelete: cfg.AllowDelete,
		now:         time.Now,
		assets:      make(map[string]*domain.Asset),
		byCoord:     make(map[string][]*domain.Asset),
	}
	c.snapshot.Store(&Snapshot{})
	if c.geo != nil {
		go c.consumeLabels(c.geo.Events())
	}
	return c
}

// Snapshot returns the most recently published view.
func (c *Catalog) Snapshot() *Snapshot { return c.snapshot.Load() }

// Subscribe returns a channel that receives every published snapshot.
// Sends are non-blocking: a subscriber that stops draining misses updates
// rather than stalling the catalog.
func (c *Catalog) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	c.subMu.Lock()
	c.subs = append(c.subs, ch)
	c.subMu.Unlock()
	return ch
}

// publish builds and distributes a snapshot. Caller holds c.mu.
func (c *Catalog) publish() {
	snap := &Snapshot{
		Filter:    c.filter,
		HasFilter: c.hasFilter,
		View:      c.view,
		Buckets:   c.buckets,
		Pending:   len(c.pending),
		Saved:     len(c.saved),
		Deleted:   len(c.deleted),
		Ingesting: c.ingesting,
	}
	if c.hasFilter {
		snap.Progress = c.progressLocked(c.filter)
		snap.Complete = snap.Progress.Total > 0 && snap.Progress.RemainingPending == 0
	}
	c.snapshot.Store(snap)

	c.subMu.Lock()
	for _, ch := range c.subs {
		select {
		case ch <- *snap:
		default:
		}
	}
	c.subMu.Unlock()
}

// Transition moves an asset between dispositions. Legal transitions:
// pending->saved, pending->deleted, deleted->saved (restore). Anything else
// fails with ErrInvalidTransition so a swipe on a stale reference no-ops
// safely at the caller.
func (c *Catalog) Transition(id string, newStatus domain.Status) error {
	c.mu.Lock()

	asset, ok := c.assets[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("transition %s: %w", id, domain.ErrAssetNotFound)
	}
	if !legalTransition(asset.Status, newStatus) {
		from := asset.Status
		c.mu.Unlock()
		return fmt.Errorf("transition %s from %s to %s: %w",
			id, from, newStatus, domain.ErrInvalidTransition)
	}

	c.removeFromPartition(asset)
	asset.Status = newStatus
	c.appendToPartition(asset)
	c.lastPosition = asset.CreationDate

	c.recomputeLocked()
	c.publish()
	c.mu.Unlock()

	c.logger.Debug("asset transitioned", "id", id, "status", newStatus.String())
	c.schedulePersist()
	return nil
}

// Restore moves a deleted asset back to saved.
func (c *Catalog) Restore(id string) error {
	return c.Transition(id, domain.StatusSaved)
}

// ByStatus returns an ordered copy of one partition. Pending keeps the
// source's newest-first order; saved and deleted keep triage order.
func (c *Catalog) ByStatus(status domain.Status) []*domain.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()

	var src []*domain.Asset
	switch status {
	case domain.StatusPending:
		src = c.pending
	case domain.StatusSaved:
		src = c.saved
	default:
		src = c.deleted
	}
	out := make([]*domain.Asset, len(src))
	copy(out, src)
	return out
}

// Get returns an asset by ID.
func (c *Catalog) Get(id string) (*domain.Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.assets[id]
	return a, ok
}

// ResumePosition returns the creation date of the most recently triaged
// asset, zero when nothing has been triaged.
func (c *Catalog) ResumePosition() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPosition
}

// Warnings returns non-fatal problems recorded during ingestion.
func (c *Catalog) Warnings() []string {
	c.warnMu.Lock()
	defer c.warnMu.Unlock()
	out := make([]string, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// CanDelete reports whether the permanent-delete capability gate is open.
func (c *Catalog) CanDelete() bool { return c.allowDelete }

// PermanentlyDelete removes deleted assets from the external source, then
// from the catalog. Irreversible, so it only proceeds once the source
// confirms removal, and only when the capability gate is open.
func (c *Catalog) PermanentlyDelete(ctx context.Context, ids []string) error {
	if !c.allowDelete {
		return domain.ErrDeleteNotPermitted
	}
	if len(ids) == 0 {
		return nil
	}

	// The source call runs outside the catalog lock; it can be slow.
	if err := c.source.DeleteAssets(ctx, ids); err != nil {
		c.logger.Error("permanent delete failed", "count", len(ids), "error", err)
		return err
	}

	c.mu.Lock()
	for _, id := range ids {
		asset, ok := c.assets[id]
		if !ok {
			continue
		}
		c.removeFromPartition(asset)
		delete(c.assets, id)
		if asset.Location != nil {
			c.removeFromCoord(asset)
		}
		if c.cache != nil {
			c.cache.Invalidate(id)
		}
	}
	c.recomputeLocked()
	c.publish()
	c.mu.Unlock()

	c.logger.Info("permanently deleted assets", "count", len(ids))
	c.schedulePersist()
	return nil
}

// SaveState persists the current classification immediately. Wired to the
// host's backgrounding signal in addition to the per-transition writes.
func (c *Catalog) SaveState() error {
	if c.sync == nil {
		return nil
	}
	saved, deleted, last, gen := c.stateCopy()
	return c.writeState(saved, deleted, last, gen)
}

// ResolveLocation kicks off label resolution for an asset with a
// coordinate. Idempotent: repeat calls after the first are no-ops.
func (c *Catalog) ResolveLocation(id string) {
	if c.geo == nil {
		return
	}

	c.mu.Lock()
	asset, ok := c.assets[id]
	if !ok || asset.Location == nil || asset.LocationResolved {
		c.mu.Unlock()
		return
	}
	asset.LocationResolved = true
	coord := *asset.Location
	c.mu.Unlock()

	// The label comes back via the queue's event stream; the callback just
	// keeps callback timing uniform for direct requesters.
	c.geo.RequestLabel(coord, func(string) {})
}

// consumeLabels patches resolved labels onto every asset sharing the
// event's coordinate. Runs for the life of the catalog.
func (c *Catalog) consumeLabels(events <-chan domain.LabelEvent) {
	for ev := range events {
		c.mu.Lock()
		patched := 0
		for _, asset := range c.byCoord[ev.Coordinate.Key()] {
			asset.LocationLabel = ev.Label
			asset.LocationResolved = true
			patched++
		}
		if patched > 0 {
			c.publish()
		}
		c.mu.Unlock()
		if patched > 0 {
			c.logger.Debug("patched location label", "coord", ev.Coordinate.Key(), "assets", patched)
		}
	}
}

// === Partition bookkeeping (caller holds c.mu) ===

func legalTransition(from, to domain.Status) bool {
	switch from {
	case domain.StatusPending:
		return to == domain.StatusSaved || to == domain.StatusDeleted
	case domain.StatusDeleted:
		return to == domain.StatusSaved
	default:
		return false
	}
}

func (c *Catalog) appendToPartition(a *domain.Asset) {
	switch a.Status {
	case domain.StatusPending:
		c.pending = append(c.pending, a)
	case domain.StatusSaved:
		c.saved = append(c.saved, a)
	default:
		c.deleted = append(c.deleted, a)
	}
}

func (c *Catalog) removeFromPartition(a *domain.Asset) {
	switch a.Status {
	case domain.StatusPending:
		c.pending = removeAsset(c.pending, a.ID)
	case domain.StatusSaved:
		c.saved = removeAsset(c.saved, a.ID)
	default:
		c.deleted = removeAsset(c.deleted, a.ID)
	}
}

func removeAsset(list []*domain.Asset, id string) []*domain.Asset {
	for i, a := range list {
		if a.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (c *Catalog) removeFromCoord(a *domain.Asset) {
	key := a.Location.Key()
	c.byCoord[key] = removeAsset(c.byCoord[key], a.ID)
	if len(c.byCoord[key]) == 0 {
		delete(c.byCoord, key)
	}
}

// stateCopy snapshots the persisted fields under the lock, tagging the copy
// with a generation so stale writes can be dropped later.
func (c *Catalog) stateCopy() (saved, deleted []string, last time.Time, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	saved = make([]string, len(c.saved))
	for i, a := range c.saved {
		saved[i] = a.ID
	}
	deleted = make([]string, len(c.deleted))
	for i, a := range c.deleted {
		deleted[i] = a.ID
	}
	c.persistGen++
	return saved, deleted, c.lastPosition, c.persistGen
}

// writeState commits one state copy unless a newer copy already landed.
func (c *Catalog) writeState(saved, deleted []string, last time.Time, gen uint64) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if gen <= c.persistDone {
		return nil
	}
	c.persistDone = gen
	return c.sync.Snapshot(saved, deleted, last)
}

// schedulePersist writes the durable snapshot off the caller's goroutine.
func (c *Catalog) schedulePersist() {
	if c.sync == nil {
		return
	}
	saved, deleted, last, gen := c.stateCopy()
	go func() {
		if err := c.writeState(saved, deleted, last, gen); err != nil {
			c.logger.Error("failed to write state snapshot", "error", err)
		}
	}()
}
