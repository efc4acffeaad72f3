package geocode

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/sift/internal/domain"
)

type fakeGeocoder struct {
	calls atomic.Int64
	fn    func(domain.Coordinate) (string, error)
}

func (g *fakeGeocoder) ReverseGeocode(_ context.Context, coord domain.Coordinate) (string, error) {
	g.calls.Add(1)
	if g.fn != nil {
		return g.fn(coord)
	}
	return "Lisbon, Portugal", nil
}

func collectLabels(t *testing.T, q *Queue, coord domain.Coordinate, n int) []string {
	t.Helper()
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		q.RequestLabel(coord, func(label string) { results <- label })
	}

	labels := make([]string, 0, n)
	deadline := time.After(2 * time.Second)
	for len(labels) < n {
		select {
		case l := <-results:
			labels = append(labels, l)
		case <-deadline:
			t.Fatalf("timed out waiting for labels, got %d of %d", len(labels), n)
		}
	}
	return labels
}

func TestConcurrentRequestsShareOneProviderCall(t *testing.T) {
	geo := &fakeGeocoder{}
	q := NewQueue(geo, time.Millisecond, nil)
	coord := domain.Coordinate{Latitude: 38.72225, Longitude: -9.13934}

	var wg sync.WaitGroup
	results := make(chan string, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.RequestLabel(coord, func(label string) { results <- label })
		}()
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		select {
		case label := <-results:
			assert.Equal(t, "Lisbon, Portugal", label)
		case <-time.After(2 * time.Second):
			t.Fatal("callback never fired")
		}
	}

	assert.Equal(t, int64(1), geo.calls.Load(),
		"queued duplicates must resolve from cache, not the provider")
}

func TestCacheHitSkipsQueue(t *testing.T) {
	geo := &fakeGeocoder{}
	q := NewQueue(geo, time.Millisecond, nil)
	coord := domain.Coordinate{Latitude: 48.8566, Longitude: 2.3522}

	collectLabels(t, q, coord, 1)
	require.Equal(t, int64(1), geo.calls.Load())

	labels := collectLabels(t, q, coord, 3)
	assert.Equal(t, int64(1), geo.calls.Load())
	for _, l := range labels {
		assert.Equal(t, "Lisbon, Portugal", l)
	}
}

func TestFailureResolvesToUnknownLocation(t *testing.T) {
	geo := &fakeGeocoder{fn: func(domain.Coordinate) (string, error) {
		return "", errors.New("provider down")
	}}
	q := NewQueue(geo, time.Millisecond, nil)

	labels := collectLabels(t, q, domain.Coordinate{Latitude: 1, Longitude: 2}, 1)
	assert.Equal(t, domain.UnknownLocation, labels[0])
}

func TestResolutionEmitsLabelEvent(t *testing.T) {
	geo := &fakeGeocoder{}
	q := NewQueue(geo, time.Millisecond, nil)
	coord := domain.Coordinate{Latitude: 38.72225, Longitude: -9.13934}

	events := q.Events()
	collectLabels(t, q, coord, 1)

	select {
	case ev := <-events:
		assert.Equal(t, coord.Key(), ev.Coordinate.Key())
		assert.Equal(t, "Lisbon, Portugal", ev.Label)
	case <-time.After(2 * time.Second):
		t.Fatal("no label event emitted")
	}
}

func TestCoordinateKeyRounding(t *testing.T) {
	// Coordinates closer than five decimal places share one cache slot.
	a := domain.Coordinate{Latitude: 38.722251, Longitude: -9.139341}
	b := domain.Coordinate{Latitude: 38.722249, Longitude: -9.139339}
	assert.Equal(t, a.Key(), b.Key())

	geo := &fakeGeocoder{}
	q := NewQueue(geo, time.Millisecond, nil)
	collectLabels(t, q, a, 1)
	collectLabels(t, q, b, 1)
	assert.Equal(t, int64(1), geo.calls.Load())
}

func TestOfflineGeocoder(t *testing.T) {
	label, err := Offline{}.ReverseGeocode(context.Background(), domain.Coordinate{Latitude: -33.86, Longitude: 151.21})
	require.NoError(t, err)
	assert.Equal(t, "33.86°S, 151.21°E", label)
}
