package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/legendstarrx/scriptsea/internal/models"
	"github.com/legendstarrx/scriptsea/pkg/cache"
)

const profileCacheKeyPrefix = "userProfile_"

// ProfileCacheKey is the local cache key of a principal's last known profile.
func ProfileCacheKey(principalID string) string {
	return profileCacheKeyPrefix + principalID
}

// ProfileCache keeps JSON snapshots of profiles for offline reads. It is a
// read fallback only; nothing read from it is ever written to the store.
type ProfileCache struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewProfileCache wraps c. A zero ttl keeps entries until replaced.
func NewProfileCache(c cache.Cache, ttl time.Duration) *ProfileCache {
	return &ProfileCache{cache: c, ttl: ttl}
}

// Save stores a snapshot of p.
func (c *ProfileCache) Save(ctx context.Context, p *models.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile snapshot: %w", err)
	}
	return c.cache.Set(ctx, ProfileCacheKey(p.ID), data, c.ttl)
}

// Load returns the last snapshot for principalID, or cache.ErrMiss.
func (c *ProfileCache) Load(ctx context.Context, principalID string) (*models.Profile, error) {
	data, err := c.cache.Get(ctx, ProfileCacheKey(principalID))
	if err != nil {
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile snapshot: %w", err)
	}
	return &p, nil
}

// Forget drops the snapshot for principalID.
func (c *ProfileCache) Forget(ctx context.Context, principalID string) error {
	return c.cache.Delete(ctx, ProfileCacheKey(principalID))
}
