package catalog

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/sift/internal/domain"
	"github.com/mmcdole/sift/internal/persist"
)

const (
	// recentPrefix is how many of the newest assets materialize before the
	// first snapshot goes out.
	recentPrefix = 150

	// ingestBatch is the chunk size for background ingestion of the
	// remaining library.
	ingestBatch = 100
)

// Load enumerates the source, restores the durable classification, and
// ingests in two phases: the newest assets in parallel for a fast first
// snapshot, then the remainder in background batches with one recompute
// at the end. Returns after phase one; the published snapshot's Ingesting
// flag clears when the background phase finishes.
func (c *Catalog) Load(ctx context.Context) error {
	pred := domain.EnumeratePredicate{}
	if c.windowMons > 0 {
		pred.CreatedAfter = c.now().AddDate(0, -c.windowMons, 0)
	}

	handles, err := c.source.Enumerate(ctx, pred)
	if err != nil {
		return fmt.Errorf("enumerate library: %w", err)
	}
	c.logger.Info("library enumerated", "assets", len(handles))

	var cls persist.Classification
	if c.sync != nil {
		cls = c.sync.Restore(handles)
	}

	prefix := recentPrefix
	if prefix > len(handles) {
		prefix = len(handles)
	}

	// Phase one: materialize the newest assets in parallel. Workers fill
	// indexed slots so the single merge below keeps source order.
	recent := make([]*domain.Asset, prefix)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < prefix; i++ {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			recent[i] = c.materialize(handles[i], cls)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("ingest recent assets: %w", err)
	}

	rest := handles[prefix:]

	c.mu.Lock()
	for _, a := range recent {
		c.admitLocked(a)
	}
	c.ingesting = len(rest) > 0
	if cls.LastPosition.After(c.lastPosition) {
		c.lastPosition = cls.LastPosition
	}
	c.recomputeLocked()
	c.selectDefaultLocked()
	c.publish()
	c.mu.Unlock()

	if len(rest) > 0 {
		go c.ingestRemaining(ctx, rest, cls)
	}
	return nil
}

// ingestRemaining appends the rest of the library in batches. Batches land
// under the lock without recomputation; buckets and view refresh once when
// everything is in.
func (c *Catalog) ingestRemaining(ctx context.Context, handles []domain.AssetHandle, cls persist.Classification) {
	start := time.Now()
	for len(handles) > 0 {
		if ctx.Err() != nil {
			c.finishIngest()
			return
		}
		n := ingestBatch
		if n > len(handles) {
			n = len(handles)
		}
		batch := make([]*domain.Asset, 0, n)
		for _, h := range handles[:n] {
			if a := c.materialize(h, cls); a != nil {
				batch = append(batch, a)
			}
		}
		handles = handles[n:]

		c.mu.Lock()
		for _, a := range batch {
			c.admitLocked(a)
		}
		c.mu.Unlock()
	}

	c.finishIngest()
	c.logger.Info("background ingestion complete", "elapsed", time.Since(start))
}

func (c *Catalog) finishIngest() {
	c.mu.Lock()
	c.ingesting = false
	c.recomputeLocked()
	c.publish()
	c.mu.Unlock()
}

// materialize builds the catalog asset for a handle, applying the restored
// classification. Returns nil for handles that cannot form a valid asset;
// those are recorded as warnings, never failures.
func (c *Catalog) materialize(h domain.AssetHandle, cls persist.Classification) *domain.Asset {
	if h.ID == "" {
		c.warn("skipped asset with empty identifier")
		return nil
	}
	a := domain.NewAsset(h)
	if status, ok := cls.Statuses[h.ID]; ok {
		a.Status = status
	}
	return a
}

// admitLocked installs an asset into the catalog. Caller holds c.mu.
// nil assets (rejected handles) are ignored so callers can admit
// materialize results directly.
func (c *Catalog) admitLocked(a *domain.Asset) {
	if a == nil {
		return
	}
	if _, exists := c.assets[a.ID]; exists {
		c.warn(fmt.Sprintf("duplicate asset id %s skipped", a.ID))
		return
	}
	a.Seq = c.nextSeq
	c.nextSeq++
	c.assets[a.ID] = a
	c.appendToPartition(a)
	if a.Location != nil {
		key := a.Location.Key()
		c.byCoord[key] = append(c.byCoord[key], a)
	}
}

func (c *Catalog) warn(msg string) {
	c.warnMu.Lock()
	c.warnings = append(c.warnings, msg)
	c.warnMu.Unlock()
	c.logger.Warn(msg)
}
