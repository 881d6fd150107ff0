package ratelimit

import (
	"context"
	"time"
)

// SlidingWindowStore is satisfied by *redis.Client.
type SlidingWindowStore interface {
	SlidingWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration, now time.Time) (bool, int64, error)
}

// Redis shares the sliding log across instances through redis.
type Redis struct {
	policy Policy
	store  SlidingWindowStore
	now    func() time.Time
}

// NewRedis builds a redis-backed limiter. A nil clock uses time.Now.
func NewRedis(policy Policy, store SlidingWindowStore, clock func() time.Time) *Redis {
	if clock == nil {
		clock = time.Now
	}
	return &Redis{policy: policy, store: store, now: clock}
}

// Policy returns the configured policy.
func (r *Redis) Policy() Policy {
	return r.policy
}

// Check records and evaluates one request for key under the policy scope.
func (r *Redis) Check(ctx context.Context, key string) (Decision, error) {
	allowed, count, err := r.store.SlidingWindowAllow(ctx, r.policy.Name+":"+key, int64(r.policy.Limit), r.policy.Window, r.now())
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: allowed, Count: int(count), Limit: r.policy.Limit}, nil
}
