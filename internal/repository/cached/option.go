// Package cached decorates repositories with a read-through cache.
package cached

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	"github.com/sitepass/subscription-whitelist/internal/pkg/cache"
)

const optionKeyPrefix = "option:"

type optionRepository struct {
	next  whitelist.OptionRepository
	cache cache.Cache
	ttl   time.Duration
}

var _ whitelist.FreshOptionReader = (*optionRepository)(nil)

// NewOptionRepository caches option reads. Every compare-and-swap drops the
// cached entry, successful or not. Edits made by other tools stay invisible
// to Get until the entry expires; writers must read with GetFresh.
func NewOptionRepository(next whitelist.OptionRepository, c cache.Cache, ttl time.Duration) whitelist.OptionRepository {
	return &optionRepository{next: next, cache: c, ttl: ttl}
}

type cachedOption struct {
	Value   []byte `json:"value"`
	Version int64  `json:"version"`
}

func (r *optionRepository) Get(ctx context.Context, name string) (whitelist.Option, error) {
	key := optionKeyPrefix + name

	raw, found, err := r.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "option cache read failed", "option", name, "error", err)
	} else if found {
		var c cachedOption
		if err := json.Unmarshal(raw, &c); err == nil {
			return whitelist.Option{Name: name, Value: c.Value, Version: c.Version}, nil
		}
	}

	return r.GetFresh(ctx, name)
}

// GetFresh reads the stored option and refreshes the cached entry.
func (r *optionRepository) GetFresh(ctx context.Context, name string) (whitelist.Option, error) {
	opt, err := r.next.Get(ctx, name)
	if err != nil {
		return opt, err
	}

	if payload, err := json.Marshal(cachedOption{Value: opt.Value, Version: opt.Version}); err == nil {
		if err := r.cache.Set(ctx, optionKeyPrefix+name, payload, r.ttl); err != nil {
			slog.WarnContext(ctx, "option cache write failed", "option", name, "error", err)
		}
	}
	return opt, nil
}

func (r *optionRepository) CompareAndSwap(ctx context.Context, name string, value []byte, expectedVersion int64) (bool, error) {
	ok, err := r.next.CompareAndSwap(ctx, name, value, expectedVersion)
	if delErr := r.cache.Delete(ctx, optionKeyPrefix+name); delErr != nil {
		slog.WarnContext(ctx, "option cache invalidation failed", "option", name, "error", delErr)
	}
	return ok, err
}
