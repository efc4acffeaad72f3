package catalog

import (
	"sort"

	"github.com/mmcdole/sift/internal/domain"
)

// === Filter queries ===

// AvailableBuckets returns the month buckets derived from pending assets,
// newest first. Buckets exist only while at least one pending asset falls
// inside them.
func (c *Catalog) AvailableBuckets() []domain.MonthYear {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.MonthYear, len(c.buckets))
	copy(out, c.buckets)
	return out
}

// Filter returns the active filter, if any.
func (c *Catalog) Filter() (domain.FilterSpec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter, c.hasFilter
}

// SetFilter activates a filter and recomputes the view.
func (c *Catalog) SetFilter(spec domain.FilterSpec) {
	c.mu.Lock()
	c.filter = spec
	c.hasFilter = true
	c.view = c.applyLocked(spec)
	c.publish()
	c.mu.Unlock()
}

// ClearFilter drops the active filter, leaving an empty view.
func (c *Catalog) ClearFilter() {
	c.mu.Lock()
	c.filter = domain.FilterSpec{}
	c.hasFilter = false
	c.view = nil
	c.publish()
	c.mu.Unlock()
}

// View returns the current filtered pending assets in display order.
func (c *Catalog) View() []*domain.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.Asset, len(c.view))
	copy(out, c.view)
	return out
}

// Progress reports triage progress for a filter, counting assets of every
// status whose creation date matches the filter's time range.
func (c *Catalog) Progress(spec domain.FilterSpec) domain.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked(spec)
}

// IsComplete reports whether a filter's range held at least one asset and
// none remain pending.
func (c *Catalog) IsComplete(spec domain.FilterSpec) bool {
	p := c.Progress(spec)
	return p.Total > 0 && p.RemainingPending == 0
}

// GroupedByMonth returns a partition's assets grouped by creation month,
// newest group first, newest asset first within each group.
func (c *Catalog) GroupedByMonth(status domain.Status) []domain.MonthGroup {
	assets := c.ByStatus(status)
	sortAssets(assets)

	var groups []domain.MonthGroup
	byMonth := make(map[string]int)
	for _, a := range assets {
		b := a.Bucket()
		idx, ok := byMonth[b.ID()]
		if !ok {
			idx = len(groups)
			byMonth[b.ID()] = idx
			groups = append(groups, domain.MonthGroup{Label: b.Label(), Month: b})
		}
		groups[idx].Assets = append(groups[idx].Assets, a)
	}
	return groups
}

// OnThisDay returns saved assets whose creation date shares today's month
// and day in an earlier year, newest first.
func (c *Catalog) OnThisDay() []*domain.Asset {
	now := c.now()
	assets := c.ByStatus(domain.StatusSaved)

	var out []*domain.Asset
	for _, a := range assets {
		d := a.CreationDate
		if d.Month() == now.Month() && d.Day() == now.Day() && d.Year() < now.Year() {
			out = append(out, a)
		}
	}
	sortAssets(out)
	return out
}

// === Recomputation (caller holds c.mu) ===

// recomputeLocked refreshes buckets and the filtered view after any
// mutation of the pending partition, reselecting the filter when its
// bucket vanished. Buckets and view always change together.
func (c *Catalog) recomputeLocked() {
	c.buckets = computeBuckets(c.pending)

	if !c.hasFilter {
		return
	}
	if c.filter.Kind == domain.FilterMonthYear && !containsBucket(c.buckets, c.filter.Month) {
		c.reselectLocked(c.filter.Month)
	}
	c.view = c.applyLocked(c.filter)
}

// reselectLocked picks a replacement after vanished's bucket emptied:
// the next-older bucket, else the newest bucket, else All while pending
// assets remain, else no filter at all.
func (c *Catalog) reselectLocked(vanished domain.MonthYear) {
	for _, b := range c.buckets {
		if b.Before(vanished) {
			c.filter = domain.MonthFilter(b)
			return
		}
	}
	if len(c.buckets) > 0 {
		c.filter = domain.MonthFilter(c.buckets[0])
		return
	}
	if len(c.pending) > 0 {
		c.filter = domain.AllFilter()
		return
	}
	c.filter = domain.FilterSpec{}
	c.hasFilter = false
}

// selectDefaultLocked picks the initial filter after the first ingestion
// phase: this week when it has pending assets, else the newest month,
// else All when anything is pending at all.
func (c *Catalog) selectDefaultLocked() {
	now := c.now()
	week := domain.ThisWeekFilter()
	for _, a := range c.pending {
		if week.Matches(a, now) {
			c.filter = week
			c.hasFilter = true
			c.view = c.applyLocked(week)
			return
		}
	}
	if len(c.buckets) > 0 {
		c.filter = domain.MonthFilter(c.buckets[0])
		c.hasFilter = true
		c.view = c.applyLocked(c.filter)
		return
	}
	if len(c.pending) > 0 {
		c.filter = domain.AllFilter()
		c.hasFilter = true
		c.view = c.applyLocked(c.filter)
		return
	}
	c.filter = domain.FilterSpec{}
	c.hasFilter = false
	c.view = nil
}

// applyLocked produces the display-ordered pending assets matching spec.
func (c *Catalog) applyLocked(spec domain.FilterSpec) []*domain.Asset {
	now := c.now()
	var out []*domain.Asset
	for _, a := range c.pending {
		if spec.Matches(a, now) {
			out = append(out, a)
		}
	}
	sortAssets(out)
	return out
}

func (c *Catalog) progressLocked(spec domain.FilterSpec) domain.Progress {
	now := c.now()
	var total, remaining int
	for _, a := range c.assets {
		if !spec.Matches(a, now) {
			continue
		}
		total++
		if a.Status == domain.StatusPending {
			remaining++
		}
	}
	p := domain.Progress{RemainingPending: remaining, Total: total}
	if total > 0 {
		p.PercentComplete = float64(total-remaining) / float64(total) * 100
	}
	return p
}

// === Pure helpers ===

// computeBuckets derives the month buckets present among pending assets,
// newest first.
func computeBuckets(pending []*domain.Asset) []domain.MonthYear {
	seen := make(map[string]bool)
	var buckets []domain.MonthYear
	for _, a := range pending {
		b := a.Bucket()
		if !seen[b.ID()] {
			seen[b.ID()] = true
			buckets = append(buckets, b)
		}
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[j].Before(buckets[i])
	})
	return buckets
}

func containsBucket(buckets []domain.MonthYear, b domain.MonthYear) bool {
	for _, x := range buckets {
		if x == b {
			return true
		}
	}
	return false
}

// sortAssets orders newest first, breaking creation-date ties by ingestion
// sequence so repeated renders stay stable.
func sortAssets(assets []*domain.Asset) {
	sort.SliceStable(assets, func(i, j int) bool {
		if !assets[i].CreationDate.Equal(assets[j].CreationDate) {
			return assets[i].CreationDate.After(assets[j].CreationDate)
		}
		return assets[i].Seq < assets[j].Seq
	})
}
