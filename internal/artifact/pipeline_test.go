package artifact

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

// fakeSource scripts fetch behavior per call.
type fakeSource struct {
	fetches atomic.Int64
	fetch   func(call int64, out chan<- domain.FetchUpdate)
}

func (f *fakeSource) Enumerate(context.Context, domain.EnumeratePredicate) ([]domain.AssetHandle, error) {
	return nil, nil
}

func (f *fakeSource) FetchImage(ctx context.Context, h domain.AssetHandle, size domain.Size) <-chan domain.FetchUpdate {
	call := f.fetches.Add(1)
	out := make(chan domain.FetchUpdate, 4)
	go func() {
		defer close(out)
		f.fetch(call, out)
	}()
	return out
}

func (f *fakeSource) FetchVideoThumb(ctx context.Context, h domain.AssetHandle, size domain.Size) <-chan domain.FetchUpdate {
	return f.FetchImage(ctx, h, size)
}

func (f *fakeSource) FetchVideoURL(context.Context, domain.AssetHandle) (string, error) {
	return "file:///tmp/clip.mp4", nil
}

func (f *fakeSource) DeleteAssets(context.Context, []string) error { return nil }

func testAsset(id string) *domain.Asset {
	return domain.NewAsset(domain.AssetHandle{
		ID:           id,
		MediaType:    domain.MediaTypePhoto,
		CreationDate: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
	})
}

var testSize = domain.Size{Width: 256, Height: 256}

func fullUpdate(id string, data []byte) domain.FetchUpdate {
	return domain.FetchUpdate{
		Artifact: domain.Artifact{AssetID: id, Data: data, Quality: domain.QualityFull},
		Final:    true,
	}
}

func TestResolveSharesSingleFetch(t *testing.T) {
	src := &fakeSource{fetch: func(call int64, out chan<- domain.FetchUpdate) {
		time.Sleep(50 * time.Millisecond)
		out <- fullUpdate("a1", []byte("payload"))
	}}
	cache := NewCacheStore(10, nil)
	pipe := NewPipeline(src, cache, PipelineConfig{}, nil)
	asset := testAsset("a1")

	const waiters = 8
	results := make([]domain.Artifact, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = pipe.Resolve(context.Background(), asset, testSize)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), src.fetches.Load(), "concurrent resolves must share one fetch")
	for _, r := range results {
		assert.Equal(t, []byte("payload"), r.Data)
		assert.False(t, r.IsPlaceholder())
	}

	cached, ok := cache.Get(Key(asset, testSize))
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), cached.Data)
}

func TestResolveCacheHitSkipsSource(t *testing.T) {
	src := &fakeSource{fetch: func(call int64, out chan<- domain.FetchUpdate) {
		out <- fullUpdate("a1", []byte("fresh"))
	}}
	cache := NewCacheStore(10, nil)
	pipe := NewPipeline(src, cache, PipelineConfig{}, nil)
	asset := testAsset("a1")

	cache.Put(Key(asset, testSize), domain.Artifact{AssetID: "a1", Data: []byte("warm"), Quality: domain.QualityFull}, 4)

	got := pipe.Resolve(context.Background(), asset, testSize)
	assert.Equal(t, []byte("warm"), got.Data)
	assert.Equal(t, int64(0), src.fetches.Load())
}

func TestResolveTimeoutYieldsRetryPlaceholder(t *testing.T) {
	release := make(chan struct{})
	src := &fakeSource{fetch: func(call int64, out chan<- domain.FetchUpdate) {
		<-release
		out <- fullUpdate("a1", []byte("too late"))
	}}
	cache := NewCacheStore(10, nil)
	pipe := NewPipeline(src, cache, PipelineConfig{ImageTimeout: 30 * time.Millisecond}, nil)
	asset := testAsset("a1")

	got := pipe.Resolve(context.Background(), asset, testSize)
	assert.Equal(t, domain.PlaceholderRetry, got.Placeholder)

	// The late result is discarded, never cached.
	close(release)
	time.Sleep(50 * time.Millisecond)
	_, ok := cache.Get(Key(asset, testSize))
	assert.False(t, ok, "late result after timeout must not be cached")

	// A later resolve starts over with a fresh fetch.
	again := pipe.Resolve(context.Background(), asset, testSize)
	assert.Equal(t, []byte("too late"), again.Data)
	assert.Equal(t, int64(2), src.fetches.Load(), "resolve after timeout must refetch")
}

func TestResolveSurvivesAbandonedWaiter(t *testing.T) {
	attached := make(chan struct{})
	flooded := make(chan struct{})
	release := make(chan struct{})
	src := &fakeSource{fetch: func(call int64, out chan<- domain.FetchUpdate) {
		<-attached
		for i := 0; i < 3*waiterBuffer; i++ {
			out <- domain.FetchUpdate{
				Artifact: domain.Artifact{AssetID: "a1", Data: []byte("blurry"), Quality: domain.QualityDegraded},
			}
		}
		close(flooded)
		<-release
		out <- fullUpdate("a1", []byte("sharp"))
	}}
	cache := NewCacheStore(10, nil)
	pipe := NewPipeline(src, cache, PipelineConfig{}, nil)
	asset := testAsset("a1")

	// First waiter attaches, then walks away without draining its updates.
	ctx, cancel := context.WithCancel(context.Background())
	pipe.ResolveUpdates(ctx, asset, testSize)
	cancel()
	close(attached)
	<-flooded

	done := make(chan domain.Artifact, 1)
	go func() {
		done <- pipe.Resolve(context.Background(), asset, testSize)
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)

	select {
	case got := <-done:
		assert.Equal(t, []byte("sharp"), got.Data)
		assert.False(t, got.IsPlaceholder())
	case <-time.After(2 * time.Second):
		t.Fatal("live waiter never resolved after another waiter stopped draining")
	}
	assert.Equal(t, int64(1), src.fetches.Load())
}

func TestResolveFailureClassesMapToPlaceholders(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.PlaceholderKind
	}{
		{"network", domain.NewFetchError(domain.FailureNetwork, errors.New("dial tcp")), domain.PlaceholderCloud},
		{"cloud", domain.NewFetchError(domain.FailureCloud, errors.New("offloaded")), domain.PlaceholderCloud},
		{"decode", domain.NewFetchError(domain.FailureDecode, errors.New("bad jpeg")), domain.PlaceholderBroken},
		{"generic", errors.New("boom"), domain.PlaceholderBroken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{fetch: func(call int64, out chan<- domain.FetchUpdate) {
				out <- domain.FetchUpdate{Final: true, Err: tc.err}
			}}
			cache := NewCacheStore(10, nil)
			pipe := NewPipeline(src, cache, PipelineConfig{}, nil)
			asset := testAsset("a1")

			got := pipe.Resolve(context.Background(), asset, testSize)
			assert.Equal(t, tc.want, got.Placeholder)
			_, ok := cache.Get(Key(asset, testSize))
			assert.False(t, ok, "placeholders must not be cached")
		})
	}
}

func TestResolveUpdatesDeliversDegradedBeforeFinal(t *testing.T) {
	src := &fakeSource{fetch: func(call int64, out chan<- domain.FetchUpdate) {
		out <- domain.FetchUpdate{
			Artifact: domain.Artifact{AssetID: "a1", Data: []byte("blurry"), Quality: domain.QualityDegraded},
		}
		time.Sleep(10 * time.Millisecond)
		out <- fullUpdate("a1", []byte("sharp"))
	}}
	cache := NewCacheStore(10, nil)
	pipe := NewPipeline(src, cache, PipelineConfig{}, nil)
	asset := testAsset("a1")

	var updates []domain.FetchUpdate
	for u := range pipe.ResolveUpdates(context.Background(), asset, testSize) {
		updates = append(updates, u)
	}

	require.Len(t, updates, 2)
	assert.Equal(t, domain.QualityDegraded, updates[0].Artifact.Quality)
	assert.False(t, updates[0].Final)
	assert.Equal(t, []byte("sharp"), updates[1].Artifact.Data)
	assert.True(t, updates[1].Final)

	// Only the full-quality result lands in the cache.
	cached, ok := cache.Get(Key(asset, testSize))
	require.True(t, ok)
	assert.Equal(t, domain.QualityFull, cached.Quality)
	assert.Equal(t, []byte("sharp"), cached.Data)
}

func TestForceReloadRetriesThenSucceeds(t *testing.T) {
	src := &fakeSource{fetch: func(call int64, out chan<- domain.FetchUpdate) {
		if call < 3 {
			out <- domain.FetchUpdate{Final: true, Err: errors.New("flaky")}
			return
		}
		out <- fullUpdate("a1", []byte("finally"))
	}}
	cache := NewCacheStore(10, nil)
	pipe := NewPipeline(src, cache, PipelineConfig{Retries: 3, RetryBackoff: time.Millisecond}, nil)
	asset := testAsset("a1")

	got := pipe.ForceReload(context.Background(), asset, testSize)
	assert.Equal(t, []byte("finally"), got.Data)
	assert.Equal(t, int64(3), src.fetches.Load())

	cached, ok := cache.Get(Key(asset, testSize))
	require.True(t, ok)
	assert.Equal(t, []byte("finally"), cached.Data)
}

func TestForceReloadExhaustionYieldsBroken(t *testing.T) {
	src := &fakeSource{fetch: func(call int64, out chan<- domain.FetchUpdate) {
		out <- domain.FetchUpdate{Final: true, Err: errors.New("down")}
	}}
	pipe := NewPipeline(src, NewCacheStore(10, nil), PipelineConfig{Retries: 2, RetryBackoff: time.Millisecond}, nil)

	got := pipe.ForceReload(context.Background(), testAsset("a1"), testSize)
	assert.Equal(t, domain.PlaceholderBroken, got.Placeholder)
	assert.Equal(t, int64(2), src.fetches.Load())
}

func TestForceReloadDropsStaleCacheEntry(t *testing.T) {
	src := &fakeSource{fetch: func(call int64, out chan<- domain.FetchUpdate) {
		out <- fullUpdate("a1", []byte("new"))
	}}
	cache := NewCacheStore(10, nil)
	pipe := NewPipeline(src, cache, PipelineConfig{Retries: 1, RetryBackoff: time.Millisecond}, nil)
	asset := testAsset("a1")

	cache.Put(Key(asset, testSize), domain.Artifact{AssetID: "a1", Data: []byte("stale")}, 5)

	got := pipe.ForceReload(context.Background(), asset, testSize)
	assert.Equal(t, []byte("new"), got.Data)
	assert.Equal(t, int64(1), src.fetches.Load())
}

func TestResolveVideoURL(t *testing.T) {
	src := &fakeSource{}
	pipe := NewPipeline(src, NewCacheStore(10, nil), PipelineConfig{}, nil)

	video := domain.NewAsset(domain.AssetHandle{ID: "v1", MediaType: domain.MediaTypeVideo})
	url, ok := pipe.ResolveVideoURL(context.Background(), video)
	require.True(t, ok)
	assert.Equal(t, "file:///tmp/clip.mp4", url)
}
