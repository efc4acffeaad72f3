package artifact

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/sift/internal/domain"
)

var errStreamClosed = errors.New("source stream closed without final result")

const (
	defaultImageTimeout = 20 * time.Second
	defaultThumbTimeout = 3 * time.Second
	defaultRetries      = 3
	defaultRetryBackoff = 500 * time.Millisecond

	// waiterBuffer sizes each waiter channel; a flight emits at most a
	// handful of degraded previews before the terminal update.
	waiterBuffer = 8
)

// PipelineConfig holds fetch timeout/retry settings.
type PipelineConfig struct {
	ImageTimeout time.Duration
	ThumbTimeout time.Duration
	Retries      int
	RetryBackoff time.Duration
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.ImageTimeout <= 0 {
		c.ImageTimeout = defaultImageTimeout
	}
	if c.ThumbTimeout <= 0 {
		c.ThumbTimeout = defaultThumbTimeout
	}
	if c.Retries <= 0 {
		c.Retries = defaultRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	return c
}

// Pipeline resolves decoded artifacts for (asset, size), coordinating the
// cache and the asset source. Concurrent resolves for one key share a single
// source fetch; every resolution terminates with a real artifact or a
// placeholder, never an error.
type Pipeline struct {
	source domain.AssetSource
	cache  domain.ArtifactCache
	logger *slog.Logger
	cfg    PipelineConfig

	mu      sync.Mutex
	flights map[domain.CacheKey]*flight
}

// NewPipeline creates a new fetch pipeline.
func NewPipeline(source domain.AssetSource, cache domain.ArtifactCache, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:  source,
		cache:   cache,
		logger:  logger,
		cfg:     cfg.withDefaults(),
		flights: make(map[domain.CacheKey]*flight),
	}
}

// flight is one in-progress source fetch shared by all concurrent waiters
// for its key.
type flight struct {
	key domain.CacheKey

	mu      sync.Mutex
	waiters []chan domain.FetchUpdate
	done    bool
	result  domain.Artifact
}

// attach registers a waiter channel, or returns the result directly if the
// flight already finished.
func (f *flight) attach() (<-chan domain.FetchUpdate, domain.Artifact, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return nil, f.result, true
	}
	ch := make(chan domain.FetchUpdate, waiterBuffer)
	f.waiters = append(f.waiters, ch)
	return ch, domain.Artifact{}, false
}

// forward delivers a degraded preview to current waiters. Best-effort: a
// waiter that is not draining its buffer just misses the preview. One buffer
// slot stays free so the terminal update always fits.
func (f *flight) forward(a domain.Artifact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return
	}
	for _, ch := range f.waiters {
		if len(ch) >= cap(ch)-1 {
			continue
		}
		select {
		case ch <- domain.FetchUpdate{Artifact: a}:
		default:
		}
	}
}

// finish resolves every waiter with the terminal artifact and closes their
// channels. Waiters attached before the terminal event all observe the same
// result. The send is buffered and never blocks: forward caps each waiter at
// cap-1 entries, so an abandoned waiter cannot wedge the flight.
func (f *flight) finish(a domain.Artifact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return
	}
	f.done = true
	f.result = a
	for _, ch := range f.waiters {
		ch <- domain.FetchUpdate{Artifact: a, Final: true}
		close(ch)
	}
	f.waiters = nil
}

// variantFor maps an asset to its artifact variant.
func variantFor(a *domain.Asset) domain.Variant {
	if a.MediaType == domain.MediaTypeVideo {
		return domain.VariantVideoThumb
	}
	return domain.VariantImage
}

// Key builds the cache key for (asset, size).
func Key(a *domain.Asset, size domain.Size) domain.CacheKey {
	return domain.CacheKey{AssetID: a.ID, Size: size, Variant: variantFor(a)}
}

func (p *Pipeline) timeoutFor(variant domain.Variant) time.Duration {
	if variant == domain.VariantVideoThumb {
		return p.cfg.ThumbTimeout
	}
	return p.cfg.ImageTimeout
}

// Resolve returns the decoded artifact for (asset, size), blocking until a
// terminal result. On cache miss it joins or starts the single underlying
// fetch for the key. Resolve never fails: timeouts and fetch errors resolve
// to placeholders so rendering code has no error branch.
func (p *Pipeline) Resolve(ctx context.Context, asset *domain.Asset, size domain.Size) domain.Artifact {
	for update := range p.ResolveUpdates(ctx, asset, size) {
		if update.Final {
			return update.Artifact
		}
	}
	// Channel closed without a terminal update only when ctx was cancelled
	// before the flight resolved.
	return domain.Placeholder(asset.ID, domain.PlaceholderRetry)
}

// ResolveUpdates is Resolve with visibility into intermediate results: the
// returned channel delivers zero or more degraded previews followed by
// exactly one final update, then closes.
func (p *Pipeline) ResolveUpdates(ctx context.Context, asset *domain.Asset, size domain.Size) <-chan domain.FetchUpdate {
	key := Key(asset, size)
	out := make(chan domain.FetchUpdate, waiterBuffer)

	if cached, ok := p.cache.Get(key); ok {
		p.logger.Debug("cache hit", "key", key.String())
		out <- domain.FetchUpdate{Artifact: cached, Final: true}
		close(out)
		return out
	}

	updates, result, done := p.join(key, asset)
	if done {
		out <- domain.FetchUpdate{Artifact: result, Final: true}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
				if u.Final {
					return
				}
			}
		}
	}()
	return out
}

// join attaches to the in-flight fetch for key, starting one if none exists.
func (p *Pipeline) join(key domain.CacheKey, asset *domain.Asset) (<-chan domain.FetchUpdate, domain.Artifact, bool) {
	p.mu.Lock()
	f, ok := p.flights[key]
	if !ok {
		f = &flight{key: key}
		p.flights[key] = f
		go p.run(f, asset.Handle())
	}
	p.mu.Unlock()
	return f.attach()
}

// run drives one source fetch to a terminal state. The flight deadline is
// not a cancellation: when it fires, waiters get a retry placeholder and a
// late source result is discarded so the next resolve refetches.
func (p *Pipeline) run(f *flight, handle domain.AssetHandle) {
	timeout := p.timeoutFor(f.key.Variant)
	updates := p.fetch(handle, f.key.Size, f.key.Variant)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			p.logger.Warn("fetch timed out", "key", f.key.String(), "timeout", timeout)
			p.detach(f)
			f.finish(domain.Placeholder(f.key.AssetID, domain.PlaceholderRetry))
			// Drain so the source goroutine is not blocked forever; the
			// late result is discarded, never cached.
			go func() {
				for range updates {
				}
			}()
			return

		case u, ok := <-updates:
			if !ok {
				// Source closed without a final update; treat as generic failure.
				p.detach(f)
				f.finish(domain.Placeholder(f.key.AssetID, domain.PlaceholderBroken))
				return
			}
			if !u.Final {
				f.forward(u.Artifact)
				continue
			}

			p.detach(f)
			if u.Err != nil {
				p.logger.Warn("fetch failed", "key", f.key.String(), "error", u.Err)
				f.finish(domain.Placeholder(f.key.AssetID, placeholderFor(u.Err)))
				return
			}
			if u.Artifact.Quality == domain.QualityFull && !u.Artifact.IsPlaceholder() {
				p.cache.Put(f.key, u.Artifact, u.Artifact.Cost())
			}
			f.finish(u.Artifact)
			return
		}
	}
}

// detach removes the flight from the dedup map so later resolves start
// fresh. Called immediately before the flight finishes.
func (p *Pipeline) detach(f *flight) {
	p.mu.Lock()
	delete(p.flights, f.key)
	p.mu.Unlock()
}

// fetch starts the variant-appropriate source stream. The source owns the
// context: no hard cancellation, only timeout-with-discard above.
func (p *Pipeline) fetch(handle domain.AssetHandle, size domain.Size, variant domain.Variant) <-chan domain.FetchUpdate {
	ctx := context.Background()
	if variant == domain.VariantVideoThumb {
		return p.source.FetchVideoThumb(ctx, handle, size)
	}
	return p.source.FetchImage(ctx, handle, size)
}

// placeholderFor maps a fetch failure to the placeholder shown instead.
func placeholderFor(err error) domain.PlaceholderKind {
	switch domain.ClassOf(err) {
	case domain.FailureNetwork, domain.FailureCloud:
		return domain.PlaceholderCloud
	default:
		return domain.PlaceholderBroken
	}
}

// ForceReload bypasses the cache and dedup map entirely: it invalidates the
// existing entry and retries the source fetch with a fixed backoff, falling
// back to a placeholder when every attempt fails.
func (p *Pipeline) ForceReload(ctx context.Context, asset *domain.Asset, size domain.Size) domain.Artifact {
	key := Key(asset, size)
	p.cache.Remove(key)

	timeout := p.timeoutFor(key.Variant)
	var lastErr error

	for attempt := 1; attempt <= p.cfg.Retries; attempt++ {
		p.logger.Debug("force reload", "key", key.String(), "attempt", attempt)

		result, err := p.fetchOnce(key, asset.Handle(), size, timeout)
		if err == nil {
			p.cache.Put(key, result, result.Cost())
			return result
		}
		lastErr = err

		if attempt < p.cfg.Retries {
			select {
			case <-ctx.Done():
				return domain.Placeholder(asset.ID, domain.PlaceholderRetry)
			case <-time.After(p.cfg.RetryBackoff):
			}
		}
	}

	p.logger.Warn("force reload exhausted retries", "key", key.String(), "error", lastErr)
	return domain.Placeholder(asset.ID, domain.PlaceholderBroken)
}

// fetchOnce runs a single source fetch to completion, discarding degraded
// previews, bounded by the variant timeout.
func (p *Pipeline) fetchOnce(key domain.CacheKey, handle domain.AssetHandle, size domain.Size, timeout time.Duration) (domain.Artifact, error) {
	updates := p.fetch(handle, size, key.Variant)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			go func() {
				for range updates {
				}
			}()
			return domain.Artifact{}, context.DeadlineExceeded

		case u, ok := <-updates:
			if !ok {
				return domain.Artifact{}, domain.NewFetchError(domain.FailureGeneric, errStreamClosed)
			}
			if !u.Final {
				continue
			}
			if u.Err != nil {
				return domain.Artifact{}, u.Err
			}
			if u.Artifact.Quality != domain.QualityFull {
				return domain.Artifact{}, domain.NewFetchError(domain.FailureDecode, errStreamClosed)
			}
			return u.Artifact, nil
		}
	}
}

// ResolveVideoURL resolves a playable URL for a video asset. Fetch failures
// surface as an empty URL, mirroring the pipeline's no-error contract.
func (p *Pipeline) ResolveVideoURL(ctx context.Context, asset *domain.Asset) (string, bool) {
	if asset.MediaType != domain.MediaTypeVideo {
		return "", false
	}
	url, err := p.source.FetchVideoURL(ctx, asset.Handle())
	if err != nil {
		p.logger.Warn("failed to resolve video url", "assetID", asset.ID, "error", err)
		return "", false
	}
	return url, true
}
