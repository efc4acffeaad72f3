package search

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/sift/internal/domain"
)

// Result is a matched asset with highlight metadata.
type Result struct {
	Asset          *domain.Asset
	MatchedIndexes []int // character positions in the asset's search text
	Score          int   // higher is better
}

// assetIndex implements fuzzy.Source for zero-allocation matching.
type assetIndex struct {
	assets []*domain.Asset
	texts  []string // pre-computed lowercase search text
}

func (idx *assetIndex) String(i int) string { return idx.texts[i] }
func (idx *assetIndex) Len() int            { return len(idx.assets) }

// Service fuzzy-matches assets by location label and month. The index is
// rebuilt by the caller whenever the underlying assets change.
type Service struct {
	logger *slog.Logger

	mu    sync.RWMutex
	index *assetIndex
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger: logger,
		index:  &assetIndex{},
	}
}

// Rebuild replaces the index. Assets without a resolved location are still
// indexed by their month label so date queries find them.
func (s *Service) Rebuild(assets []*domain.Asset) {
	idx := &assetIndex{
		assets: make([]*domain.Asset, 0, len(assets)),
		texts:  make([]string, 0, len(assets)),
	}
	for _, a := range assets {
		idx.assets = append(idx.assets, a)
		idx.texts = append(idx.texts, searchText(a))
	}

	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
	s.logger.Debug("rebuilt search index", "assets", len(assets))
}

// Count returns the number of indexed assets.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Query matches assets against a free-text query, best matches first.
func (s *Service) Query(query string) []Result {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return nil
	}

	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()

	if idx.Len() == 0 {
		return nil
	}

	matches := fuzzy.FindFrom(query, idx)
	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Asset:          idx.assets[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}

// Labels ranks the distinct resolved location labels against a query,
// closest first. Drives the location picker.
func (s *Service) Labels(query string) []string {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()

	seen := make(map[string]bool)
	var labels []string
	for _, a := range idx.assets {
		label := a.LocationLabel
		if label == "" || label == domain.UnknownLocation || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		sort.Strings(labels)
		return labels
	}

	ranks := lfuzzy.RankFindFold(query, labels)
	sort.Sort(ranks)
	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out
}

// searchText builds the lowercase haystack for one asset.
func searchText(a *domain.Asset) string {
	parts := []string{a.Bucket().Label()}
	if a.LocationLabel != "" && a.LocationLabel != domain.UnknownLocation {
		parts = append(parts, a.LocationLabel)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
