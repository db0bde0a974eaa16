package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solwatch/trustgate/pkg/trustgate/platform"
)

const (
	// DefaultBatchSize is the platform's maximum handles per batch lookup.
	DefaultBatchSize = 100

	// DefaultBatchDelay is inserted between successful batches to stay
	// under typical per-second call ceilings.
	DefaultBatchDelay = 1100 * time.Millisecond

	// DefaultRateLimitWait is the cooldown before retrying a rate-limited
	// batch when the platform gives no retry-after hint.
	DefaultRateLimitWait = 15 * time.Minute
)

// ResolutionFailure indicates that zero handles resolved across all
// batches. Like a trust-list fetch failure, it disables the trust feature
// without being fatal to the rest of the system.
type ResolutionFailure struct {
	Attempted int
}

func (e *ResolutionFailure) Error() string {
	return "identity resolution failed: no handles resolved"
}

// Resolver converts account handles to platform IDs in batches.
type Resolver struct {
	client        platform.Client
	batchSize     int
	batchDelay    time.Duration
	rateLimitWait time.Duration

	// sleep is replaceable in tests; it must honor context cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// ResolverOption adjusts a Resolver.
type ResolverOption func(*Resolver)

// WithBatchSize sets the maximum handles per batch lookup.
func WithBatchSize(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause between successful batches.
func WithBatchDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.batchDelay = d }
}

// WithRateLimitWait sets the fallback cooldown after a rate-limit signal.
func WithRateLimitWait(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.rateLimitWait = d }
}

// NewResolver creates a Resolver backed by the given platform client.
func NewResolver(client platform.Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:        client,
		batchSize:     DefaultBatchSize,
		batchDelay:    DefaultBatchDelay,
		rateLimitWait: DefaultRateLimitWait,
		sleep:         sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve performs a full resolution pass over the given handles and
// returns a fresh cache. Per-item and per-batch failures are recorded in
// FailedHandles; the pass fails only when nothing resolved at all.
func (r *Resolver) Resolve(ctx context.Context, handles []string) (*Cache, error) {
	cache := &Cache{
		HandleToID:    make(map[string]string),
		TotalAccounts: len(handles),
	}

	batches := splitBatches(handles, r.batchSize)
	log.Info().
		Int("handles", len(handles)).
		Int("batches", len(batches)).
		Msg("Resolving trusted account handles to IDs")

	for i, batch := range batches {
		result, err := r.resolveBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().
				Err(err).
				Int("batch", i+1).
				Int("total_batches", len(batches)).
				Msg("Batch resolution failed, recording handles as unresolved")
			cache.FailedHandles = append(cache.FailedHandles, batch...)
			continue
		}

		for _, acct := range result.Resolved {
			cache.HandleToID[strings.ToLower(acct.Handle)] = acct.ID
		}
		for _, f := range result.Failed {
			cache.FailedHandles = append(cache.FailedHandles, f.Handle)
			log.Debug().Str("handle", f.Handle).Str("reason", f.Reason).Msg("Handle did not resolve")
		}

		log.Info().
			Int("batch", i+1).
			Int("total_batches", len(batches)).
			Int("resolved", len(result.Resolved)).
			Msg("Resolved batch")

		if i < len(batches)-1 && r.batchDelay > 0 {
			if err := r.sleep(ctx, r.batchDelay); err != nil {
				return nil, err
			}
		}
	}

	cache.SuccessfulResolutions = len(cache.HandleToID)
	cache.CreatedAt = time.Now().UTC()

	if cache.SuccessfulResolutions == 0 {
		return nil, &ResolutionFailure{Attempted: len(handles)}
	}

	log.Info().
		Int("resolved", cache.SuccessfulResolutions).
		Int("failed", len(cache.FailedHandles)).
		Int("total", cache.TotalAccounts).
		Msg("Identity resolution pass complete")
	return cache, nil
}

// resolveBatch issues one batch lookup, retrying once after a rate-limit
// cooldown. A second rate limit on the same batch is reported up.
func (r *Resolver) resolveBatch(ctx context.Context, batch []string) (*platform.ResolveResult, error) {
	result, err := r.client.ResolveHandles(ctx, batch)
	if err == nil {
		return result, nil
	}

	var rl *platform.RateLimitError
	if !errors.As(err, &rl) {
		return nil, err
	}

	wait := rl.RetryAfter
	if wait <= 0 {
		wait = r.rateLimitWait
	}
	log.Warn().Dur("wait", wait).Msg("Rate limited during resolution, backing off before retry")
	if err := r.sleep(ctx, wait); err != nil {
		return nil, err
	}

	return r.client.ResolveHandles(ctx, batch)
}

// EnsureCache returns a valid cache: the persisted one when fresh, else a
// new full resolution pass persisted to disk.
func (r *Resolver) EnsureCache(ctx context.Context, path string, handles []string, window time.Duration) (*Cache, error) {
	if window <= 0 {
		window = DefaultValidityWindow
	}

	cached, err := LoadCache(path)
	if err != nil {
		return nil, err
	}
	if cached.IsValid(time.Now(), window) {
		log.Info().
			Int("resolved", len(cached.HandleToID)).
			Time("created_at", cached.CreatedAt).
			Msg("Reusing valid identity cache")
		return cached, nil
	}

	cache, err := r.Resolve(ctx, handles)
	if err != nil {
		return nil, err
	}
	if err := SaveCache(path, cache); err != nil {
		// A failed persist does not invalidate the in-memory result.
		log.Error().Err(err).Str("path", path).Msg("Failed to persist identity cache")
	}
	return cache, nil
}

func splitBatches(handles []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(handles); start += size {
		end := start + size
		if end > len(handles) {
			end = len(handles)
		}
		batches = append(batches, handles[start:end])
	}
	return batches
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
