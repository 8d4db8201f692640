package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/repository"
	"github.com/aryan0dhankhar/propertyhub/pkg/cache"
	"github.com/aryan0dhankhar/propertyhub/pkg/database"
)

const principalKeyPrefix = "principal:"

// PrincipalCacheTTL bounds how long a status change made outside this process
// takes to reach the re-check.
const PrincipalCacheTTL = 30 * time.Second

// PrincipalCache answers whether a token subject may still act. Lookups are
// cached for a short TTL; status changes invalidate the entry immediately.
//
// Each key carries a generation bumped by Invalidate. A lookup stores its
// answer only if the generation it started with is still current, so a read
// that raced a status change never repopulates the entry with stale state.
type PrincipalCache struct {
	db    database.Runner
	repos repository.Manager
	cache *cache.Cache[bool]

	mu   sync.Mutex
	gens map[string]uint64
}

func NewPrincipalCache(db database.Runner, repos repository.Manager, ttl time.Duration) *PrincipalCache {
	return &PrincipalCache{
		db:    db,
		repos: repos,
		cache: cache.New[bool](ttl),
		gens:  map[string]uint64{},
	}
}

// VerifyActive returns nil when subject is an active account.
func (c *PrincipalCache) VerifyActive(ctx context.Context, subject string) error {
	key := principalKeyPrefix + subject
	if active, ok := c.cache.Get(key); ok {
		return activeErr(active)
	}
	gen := c.generation(key)

	user, err := database.WithSession(ctx, c.db, func(ctx context.Context, sess database.Session) (*domain.User, error) {
		return c.repos.Users(sess).GetByID(ctx, subject)
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrNotAuthenticated
		}
		return err
	}

	active := user.CanAuthenticate()
	c.store(key, gen, active)
	return activeErr(active)
}

// Invalidate drops the cached answer for id and discards any lookup still in
// flight for it.
func (c *PrincipalCache) Invalidate(id string) {
	key := principalKeyPrefix + id
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	c.cache.Delete(key)
}

func (c *PrincipalCache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

func (c *PrincipalCache) store(key string, gen uint64, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return
	}
	c.cache.Set(key, active)
}

// Purge drops expired entries and returns how many were removed.
func (c *PrincipalCache) Purge() int {
	return c.cache.Purge()
}

func activeErr(active bool) error {
	if active {
		return nil
	}
	return domain.ErrAccountInactive
}
