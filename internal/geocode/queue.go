package geocode

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mmcdole/sift/internal/domain"
)

const (
	defaultMinInterval = 200 * time.Millisecond

	// eventBuffer sizes the label event channel; the catalog drains it
	// promptly, the buffer just absorbs bursts.
	eventBuffer = 128
)

// Callback receives the resolved label for one request. Failures resolve to
// the sentinel label, never an error.
type Callback func(label string)

type request struct {
	coord domain.Coordinate
	cb    Callback
}

// Queue serializes and rate-limits reverse-geocoding lookups. Many
// producers, one consumer: requests drain in FIFO order through a single
// worker that never calls the provider more than once per interval.
type Queue struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
	limiter  *rate.Limiter

	mu       sync.Mutex
	cache    map[string]string // coordinate key -> label, unbounded for process lifetime
	pending  []request
	draining bool

	events chan domain.LabelEvent
}

// NewQueue creates a new geocoding queue. minInterval bounds the provider
// call rate (default 200ms when <= 0).
func NewQueue(geocoder domain.Geocoder, minInterval time.Duration, logger *slog.Logger) *Queue {
	if minInterval <= 0 {
		minInterval = defaultMinInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		geocoder: geocoder,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
		cache:    make(map[string]string),
		events:   make(chan domain.LabelEvent, eventBuffer),
	}
}

// Events returns the label resolution stream. The catalog subscribes to
// patch labels onto every asset sharing a coordinate; the queue itself
// knows nothing about asset identities.
func (q *Queue) Events() <-chan domain.LabelEvent { return q.events }

// RequestLabel resolves a coordinate to a place label. Cache hits invoke the
// callback immediately (still on a fresh goroutine, so callback timing is
// uniform); misses enqueue in FIFO order behind the rate limit.
func (q *Queue) RequestLabel(coord domain.Coordinate, cb Callback) {
	key := coord.Key()

	q.mu.Lock()
	if label, ok := q.cache[key]; ok {
		q.mu.Unlock()
		go cb(label)
		return
	}

	q.pending = append(q.pending, request{coord: coord, cb: cb})
	if !q.draining {
		q.draining = true
		go q.drain()
	}
	q.mu.Unlock()
}

// drain is the single queue worker. It exits when the queue empties and is
// restarted by the next cache miss.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		req := q.pending[0]
		q.pending = q.pending[1:]

		// Re-check the cache: an earlier request for the same coordinate
		// may have resolved while this one waited in the queue.
		if label, ok := q.cache[req.coord.Key()]; ok {
			q.mu.Unlock()
			go req.cb(label)
			continue
		}
		q.mu.Unlock()

		// The limiter, not the worker loop, paces provider calls.
		if err := q.limiter.Wait(context.Background()); err != nil {
			continue
		}

		q.resolve(req)
	}
}

// resolve performs one provider call and fans the result out: cache write,
// callback, label event. Failures downgrade to the sentinel label and are
// never surfaced as errors.
func (q *Queue) resolve(req request) {
	label, err := q.geocoder.ReverseGeocode(context.Background(), req.coord)
	if err != nil || label == "" {
		if err != nil {
			q.logger.Debug("reverse geocode failed", "coord", req.coord.Key(), "error", err)
		}
		label = domain.UnknownLocation
	}

	q.mu.Lock()
	q.cache[req.coord.Key()] = label
	q.mu.Unlock()

	go req.cb(label)

	select {
	case q.events <- domain.LabelEvent{Coordinate: req.coord, Label: label}:
	default:
		q.logger.Warn("label event dropped, subscriber lagging", "coord", req.coord.Key())
	}
}
