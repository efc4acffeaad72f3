package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/sift/internal/domain"
)

func asset(id, label string, created time.Time) *domain.Asset {
	a := domain.NewAsset(domain.AssetHandle{ID: id, CreationDate: created})
	a.LocationLabel = label
	return a
}

func indexed() *Service {
	s := NewService(nil)
	s.Rebuild([]*domain.Asset{
		asset("a", "Lisbon, Portugal", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)),
		asset("b", "Porto, Portugal", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
		asset("c", "", time.Date(2023, 7, 10, 0, 0, 0, 0, time.UTC)),
		asset("d", domain.UnknownLocation, time.Date(2023, 8, 2, 0, 0, 0, 0, time.UTC)),
	})
	return s
}

func TestQueryMatchesLocationLabel(t *testing.T) {
	s := indexed()

	results := s.Query("lisbon")
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].Asset.ID)
}

func TestQueryMatchesMonthLabel(t *testing.T) {
	s := indexed()

	results := s.Query("july 2023")
	require.NotEmpty(t, results)
	assert.Equal(t, "c", results[0].Asset.ID)
}

func TestQueryEmptyAndNoMatch(t *testing.T) {
	s := indexed()
	assert.Empty(t, s.Query(""))
	assert.Empty(t, s.Query("   "))
	assert.Empty(t, s.Query("zzzzqqqq"))
}

func TestLabelsDistinctAndRanked(t *testing.T) {
	s := indexed()

	all := s.Labels("")
	assert.Equal(t, []string{"Lisbon, Portugal", "Porto, Portugal"}, all,
		"empty and unknown labels stay out of the picker")

	ranked := s.Labels("porto")
	require.NotEmpty(t, ranked)
	assert.Equal(t, "Porto, Portugal", ranked[0])
}

func TestRebuildReplacesIndex(t *testing.T) {
	s := indexed()
	require.Equal(t, 4, s.Count())

	s.Rebuild(nil)
	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.Query("lisbon"))
}
