package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rfp-studio/engine/internal/models"
	"github.com/rfp-studio/engine/internal/repository"
)

var (
	userCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rfp_user_cache_hits_total",
		Help: "Authenticated user lookups served from the in-memory cache.",
	})
	userCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rfp_user_cache_misses_total",
		Help: "Authenticated user lookups that went to the database.",
	})
)

// UserResolver maps an authenticated subject to its current user record.
type UserResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (*models.User, error)
	Forget(id uuid.UUID)
}

// cachedUserResolver fronts the user table with a per-instance expiring LRU.
type cachedUserResolver struct {
	users repository.UserRepository
	cache *expirable.LRU[uuid.UUID, models.User]
}

func NewUserResolver(users repository.UserRepository, size int, ttl time.Duration) UserResolver {
	return &cachedUserResolver{
		users: users,
		cache: expirable.NewLRU[uuid.UUID, models.User](size, nil, ttl),
	}
}

var _ UserResolver = (*cachedUserResolver)(nil)

// Resolve returns a copy so callers cannot mutate the cached record.
func (r *cachedUserResolver) Resolve(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := r.cache.Get(id); ok {
		userCacheHits.Inc()
		return &u, nil
	}
	userCacheMisses.Inc()

	var u models.User
	if err := r.users.GetByID(ctx, id, &u); err != nil {
		return nil, err
	}
	r.cache.Add(id, u)
	return &u, nil
}

func (r *cachedUserResolver) Forget(id uuid.UUID) {
	r.cache.Remove(id)
}
