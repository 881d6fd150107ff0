package security

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// HashObserver receives the wall time of each argon2 computation.
type HashObserver interface {
	ObserveHashDuration(op string, d time.Duration)
}

// EngineParams bundles the dependencies required to build an Engine.
type EngineParams struct {
	Policy Policy
	// MaxConcurrent bounds in-flight argon2 computations. Zero means 1.
	MaxConcurrent int64
	Observer      HashObserver
}

// Engine applies a Policy and serializes argon2 work through a weighted semaphore.
type Engine struct {
	policy   Policy
	slots    *semaphore.Weighted
	observer HashObserver
}

// NewEngine builds a password engine. The policy is fixed for its lifetime.
func NewEngine(params EngineParams) *Engine {
	slots := params.MaxConcurrent
	if slots <= 0 {
		slots = 1
	}
	return &Engine{
		policy:   params.Policy,
		slots:    semaphore.NewWeighted(slots),
		observer: params.Observer,
	}
}

// Policy returns the active policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// ValidateStrength checks password against the active policy.
func (e *Engine) ValidateStrength(password string) error {
	return e.policy.ValidateStrength(password)
}

// Hash rejects passwords failing the policy and otherwise returns an argon2id hash.
func (e *Engine) Hash(ctx context.Context, password string) (string, error) {
	if err := e.policy.ValidateStrength(password); err != nil {
		return "", err
	}
	if err := e.acquire(ctx); err != nil {
		return "", err
	}
	defer e.slots.Release(1)

	start := time.Now()
	encoded, err := HashPassword(password, e.policy.Argon)
	e.observe("hash", start)
	return encoded, err
}

// Verify recomputes the hash under its embedded parameters. A structurally
// invalid hash returns ErrInvalidHash.
func (e *Engine) Verify(ctx context.Context, password, encoded string) (bool, error) {
	if err := e.acquire(ctx); err != nil {
		return false, err
	}
	defer e.slots.Release(1)

	start := time.Now()
	ok, err := VerifyPassword(password, encoded)
	e.observe("verify", start)
	return ok, err
}

// GenerateRandomPassword delegates to the active policy.
func (e *Engine) GenerateRandomPassword(length int) (string, error) {
	return e.policy.GenerateRandomPassword(length)
}

func (e *Engine) acquire(ctx context.Context) error {
	if err := e.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for hash slot: %w", err)
	}
	return nil
}

func (e *Engine) observe(op string, start time.Time) {
	if e.observer != nil {
		e.observer.ObserveHashDuration(op, time.Since(start))
	}
}
