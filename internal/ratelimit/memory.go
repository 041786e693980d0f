package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int
	reset time.Time
}

// Memory is a per-process fixed window limiter.
type Memory struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewMemory(cfg Config) *Memory {
	return &Memory{cfg: cfg, now: time.Now, windows: make(map[string]*window)}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	if !m.cfg.enabled() {
		return true, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.reset) {
		m.sweep(now)
		m.windows[key] = &window{count: 1, reset: now.Add(m.cfg.Window)}
		return true, nil
	}
	if w.count >= m.cfg.Requests {
		return false, nil
	}
	w.count++
	return true, nil
}

// sweep drops expired windows. Caller holds mu.
func (m *Memory) sweep(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.reset) {
			delete(m.windows, k)
		}
	}
}
