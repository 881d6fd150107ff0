// Package ratelimit admits or rejects requests per client key using a sliding
// log of accepted request times.
package ratelimit

import (
	"context"
	"time"

	"github.com/mabar/mabar-backend/pkg/config"
)

// Policy is a named request ceiling over a window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// AuthPolicy guards credential endpoints.
func AuthPolicy(cfg config.RateLimitConfig) Policy {
	return Policy{Name: "auth", Limit: orDefault(cfg.AuthLimit, 5), Window: orDefaultDuration(cfg.AuthWindow, 15*time.Minute)}
}

// APIPolicy guards every endpoint.
func APIPolicy(cfg config.RateLimitConfig) Policy {
	return Policy{Name: "api", Limit: orDefault(cfg.APILimit, 100), Window: orDefaultDuration(cfg.APIWindow, 15*time.Minute)}
}

// Decision reports the outcome of a check.
type Decision struct {
	Allowed bool
	// Count is the number of accepted requests in the window after this check.
	Count int
	Limit int
}

// Limiter is implemented by the in-process and redis backends.
type Limiter interface {
	Policy() Policy
	Check(ctx context.Context, key string) (Decision, error)
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func orDefaultDuration(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
