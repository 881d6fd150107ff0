package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory keeps per-key timestamp logs in process. A single mutex serializes
// prune, count and append for every key.
type Memory struct {
	policy Policy
	now    func() time.Time

	mu   sync.Mutex
	logs map[string][]time.Time
}

// NewMemory builds an in-process limiter. A nil clock uses time.Now.
func NewMemory(policy Policy, clock func() time.Time) *Memory {
	if clock == nil {
		clock = time.Now
	}
	return &Memory{
		policy: policy,
		now:    clock,
		logs:   make(map[string][]time.Time),
	}
}

// Policy returns the configured policy.
func (m *Memory) Policy() Policy {
	return m.policy
}

// Check never fails; the error is part of the Limiter contract.
func (m *Memory) Check(_ context.Context, key string) (Decision, error) {
	return m.Allow(key), nil
}

// Allow prunes entries at least one window old, then admits the request iff
// fewer than Limit entries remain. Only admitted requests are recorded.
func (m *Memory) Allow(key string) Decision {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	log := prune(m.logs[key], now, m.policy.Window)
	if len(log) >= m.policy.Limit {
		m.logs[key] = log
		return Decision{Allowed: false, Count: len(log), Limit: m.policy.Limit}
	}
	log = append(log, now)
	m.logs[key] = log
	return Decision{Allowed: true, Count: len(log), Limit: m.policy.Limit}
}

// Sweep drops keys whose entries have all aged out and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, log := range m.logs {
		log = prune(log, now, m.policy.Window)
		if len(log) == 0 {
			delete(m.logs, key)
			removed++
			continue
		}
		m.logs[key] = log
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

func (m *Memory) keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

// prune relies on log being in ascending order, which holds because entries
// are appended under the lock with a monotonic clock.
func prune(log []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(log) && now.Sub(log[i]) >= window {
		i++
	}
	if i == 0 {
		return log
	}
	return append(log[:0:0], log[i:]...)
}
