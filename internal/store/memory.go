package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// sweepInterval bounds how often Set scans for expired entries.
const sweepInterval = time.Minute

type entry struct {
	value   string
	expires time.Time
}

// Memory is an in-process Store. Values are kept in their string form so
// that reads behave the same as with redis.
type Memory struct {
	mu        sync.RWMutex
	entries   map[string]entry
	clock     clock.Clock
	lastSweep time.Time
}

func NewMemory(c clock.Clock) *Memory {
	if c == nil {
		c = clock.New()
	}
	return &Memory{entries: make(map[string]entry), clock: c, lastSweep: c.Now()}
}

func (m *Memory) Set(_ context.Context, deviceID string, value float64, ttl time.Duration) error {
	now := m.clock.Now()
	e := entry{value: formatValue(value)}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key(deviceID)] = e
	if now.Sub(m.lastSweep) >= sweepInterval {
		m.sweep(now)
	}
	return nil
}

// sweep drops expired entries so that device ids which stop reporting do
// not accumulate. Callers hold m.mu.
func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}

func (m *Memory) Get(_ context.Context, deviceID string) (float64, bool, error) {
	k := key(deviceID)
	m.mu.RLock()
	e, ok := m.entries[k]
	m.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}
	if !e.expires.IsZero() && !m.clock.Now().Before(e.expires) {
		m.mu.Lock()
		if cur, ok := m.entries[k]; ok && cur == e {
			delete(m.entries, k)
		}
		m.mu.Unlock()
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(e.value, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}
