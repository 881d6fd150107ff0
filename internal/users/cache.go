package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mabar/mabar-backend/pkg/db/models"
	"github.com/mabar/mabar-backend/pkg/enums"
)

// CachedStore fronts FindByID with a size-bounded TTL cache. Writes made
// through it evict the affected entry; writes made elsewhere (another
// instance, a manual SQL update) become visible within the TTL.
type CachedStore struct {
	Store
	byID *expirable.LRU[uuid.UUID, *models.User]

	// gen advances around every write. A lookup only fills the cache when
	// no write started or finished while it was reading the store.
	mu  sync.Mutex
	gen uint64
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps next. A non-positive ttl or size returns next unchanged.
func NewCachedStore(next Store, size int, ttl time.Duration) Store {
	if ttl <= 0 || size <= 0 {
		return next
	}
	return &CachedStore{
		Store: next,
		byID:  expirable.NewLRU[uuid.UUID, *models.User](size, nil, ttl),
	}
}

func (c *CachedStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := c.byID.Get(id); ok {
		return cloneUser(user), nil
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	user, err := c.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.byID.Add(id, cloneUser(user))
	}
	c.mu.Unlock()
	return user, nil
}

func (c *CachedStore) UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) (*models.User, error) {
	c.invalidate(id)
	defer c.invalidate(id)
	return c.Store.UpdateRole(ctx, id, role)
}

func (c *CachedStore) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	c.invalidate(id)
	defer c.invalidate(id)
	return c.Store.UpdatePasswordHash(ctx, id, hash)
}

func (c *CachedStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	c.invalidate(id)
	defer c.invalidate(id)
	return c.Store.SetActive(ctx, id, active)
}

func (c *CachedStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	c.invalidate(id)
	defer c.invalidate(id)
	return c.Store.UpdateLastLogin(ctx, id, at)
}

func (c *CachedStore) LinkGoogle(ctx context.Context, id uuid.UUID, googleID string) error {
	c.invalidate(id)
	defer c.invalidate(id)
	return c.Store.LinkGoogle(ctx, id, googleID)
}

func (c *CachedStore) invalidate(id uuid.UUID) {
	c.mu.Lock()
	c.gen++
	c.byID.Remove(id)
	c.mu.Unlock()
}

// Len reports how many users are cached.
func (c *CachedStore) Len() int {
	return c.byID.Len()
}
