package cache

import (
	"context"
)

// FetchFunc produces a fresh value for one key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

type flightResult struct {
	value   any
	ok      bool
	outcome Outcome
}

// Fetch returns the best available value for key.
//
// A value younger than the TTL is returned without calling fetch. Otherwise
// fetch is called; a non-empty result is stored and returned. If fetch fails,
// returns an empty container, or returns a nil pointer, the previously stored
// value is returned unchanged and its timestamp is left alone so the next call
// tries again. The boolean is false only when no value has ever been stored
// for key and this refresh produced none either. Fetch never returns the
// error from fetch; it is logged.
//
// Concurrent callers on one key share a single fetch. That fetch runs without
// the caller's cancellation; a caller whose ctx ends first gets the stored
// value, if any, and leaves the fetch running for the others.
func Fetch[T any](ctx context.Context, c *Cache, key string, fetch FetchFunc[T]) (T, bool) {
	var zero T

	if e, ok := c.lookup(key); ok && c.fresh(e) {
		if v, typed := e.Value.(T); typed {
			c.obs.CacheLookup(OutcomeHit)
			return v, true
		}
	}

	// the refresh is shared by every caller on key, so it must outlive the
	// caller that started it
	shared := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (any, error) {
		return c.refresh(shared, key, func(ctx context.Context) (any, error) {
			return fetch(ctx)
		}), nil
	})

	var res flightResult
	select {
	case r := <-ch:
		res = r.Val.(flightResult)
	case <-ctx.Done():
		res = c.abandoned(key)
	}
	c.obs.CacheLookup(res.outcome)

	if !res.ok {
		return zero, false
	}
	v, typed := res.value.(T)
	if !typed {
		c.log.Error().Str("key", key).Msgf("cached value has type %T", res.value)
		return zero, false
	}
	return v, true
}

// abandoned answers a caller that gave up waiting on a refresh still in
// flight. It serves whatever is stored, however old.
func (c *Cache) abandoned(key string) flightResult {
	if e, ok := c.lookup(key); ok {
		return flightResult{value: e.Value, ok: true, outcome: OutcomeStale}
	}
	return flightResult{outcome: OutcomeMiss}
}

func (c *Cache) refresh(ctx context.Context, key string, fetch func(context.Context) (any, error)) flightResult {
	prev, exists := c.lookup(key)
	if exists && c.fresh(prev) {
		// a flight that finished just before this one already refreshed it
		return flightResult{value: prev.Value, ok: true, outcome: OutcomeHit}
	}

	v, err := fetch(ctx)
	outcome := OutcomeEmpty
	switch {
	case err != nil:
		c.log.Warn().Err(err).Str("key", key).Bool("stale_available", exists).Msg("cache refresh failed")
		outcome = OutcomeMiss
	case absent(v):
		c.log.Debug().Str("key", key).Msg("cache refresh returned no value")
	case Empty(v):
		c.log.Debug().Str("key", key).Bool("stale_available", exists).Msg("cache refresh returned empty result")
	default:
		c.store(key, v)
		return flightResult{value: v, ok: true, outcome: OutcomeRefreshed}
	}

	if exists {
		return flightResult{value: prev.Value, ok: true, outcome: OutcomeStale}
	}
	return flightResult{outcome: outcome}
}
