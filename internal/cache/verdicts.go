package cache

import (
	"context"

	"github.com/hetulpatel/crossarb/internal/matches"
)

// VerdictCache stores resolution verdicts by matches.VerdictCacheKey, so an
// edited rule text asks the model again.
type VerdictCache interface {
	Get(ctx context.Context, key string) (*matches.ResolutionVerdict, bool, error)
	Set(ctx context.Context, key string, verdict *matches.ResolutionVerdict) error
}

type redisVerdictCache struct {
	store jsonStore[matches.ResolutionVerdict]
}

// Verdicts returns a verdict cache under prefix (default "pair_verdict").
func (c *Client) Verdicts(prefix string) VerdictCache {
	if prefix == "" {
		prefix = "pair_verdict"
	}
	return &redisVerdictCache{store: newStore[matches.ResolutionVerdict](c, prefix)}
}

func (c *redisVerdictCache) Get(ctx context.Context, key string) (*matches.ResolutionVerdict, bool, error) {
	return c.store.get(ctx, key)
}

func (c *redisVerdictCache) Set(ctx context.Context, key string, verdict *matches.ResolutionVerdict) error {
	if verdict == nil {
		return nil
	}
	return c.store.set(ctx, key, *verdict)
}
