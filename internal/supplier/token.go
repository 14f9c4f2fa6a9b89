package supplier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"flight-aggregator/internal/cache"
)

// TokenCache keeps one auth token per supplier per calendar day. Concurrent
// misses for the same key share one fetch.
type TokenCache struct {
	cache cache.Cache
	group singleflight.Group
	now   func() time.Time
}

func NewTokenCache(c cache.Cache) *TokenCache {
	return &TokenCache{cache: c, now: time.Now}
}

func (t *TokenCache) key(supplier string) string {
	return "token:" + supplier + ":" + t.now().Format("2006-01-02")
}

// Token returns the cached token for supplier, calling fetch on a miss
func (t *TokenCache) Token(ctx context.Context, supplier string, fetch func(context.Context) (string, error)) (string, error) {
	key := t.key(supplier)
	if tok, err := t.cache.Get(ctx, key); err == nil {
		return tok, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		return "", fmt.Errorf("read token cache: %w", err)
	}

	v, err, _ := t.group.Do(key, func() (interface{}, error) {
		if tok, err := t.cache.Get(ctx, key); err == nil {
			return tok, nil
		}
		tok, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		if err := t.cache.Set(ctx, key, tok, t.untilMidnight()); err != nil {
			return "", fmt.Errorf("write token cache: %w", err)
		}
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops today's token so the next call re-authenticates
func (t *TokenCache) Invalidate(ctx context.Context, supplier string) error {
	return t.cache.Delete(ctx, t.key(supplier))
}

func (t *TokenCache) untilMidnight() time.Duration {
	now := t.now()
	y, m, d := now.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return midnight.Sub(now)
}
