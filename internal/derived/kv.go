package derived

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// KV is the key-value backend of the cache. Deleting an absent key must
// succeed.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memEntry struct {
	value    []byte
	expireAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// MemoryKV is an in-process KV with per-entry expiry. Expired entries are
// invisible to Get right away and reclaimed by Sweep.
type MemoryKV struct {
	data *xsync.MapOf[string, memEntry]
	now  func() time.Time
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		data: xsync.NewMapOf[string, memEntry](),
		now:  time.Now,
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(m.now()) {
		m.data.Compute(key, func(old memEntry, loaded bool) (memEntry, bool) {
			// Drop only if no fresher value was stored meanwhile.
			return old, !loaded || old.expired(m.now())
		})
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key. A ttl of zero or less never expires.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expireAt = m.now().Add(ttl)
	}
	m.data.Store(key, e)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.data.Delete(key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryKV) Len() int {
	return m.data.Size()
}

// Sweep removes expired entries and returns how many it dropped.
func (m *MemoryKV) Sweep() int {
	now := m.now()
	dropped := 0
	m.data.Range(func(key string, e memEntry) bool {
		if e.expired(now) {
			m.data.Compute(key, func(old memEntry, loaded bool) (memEntry, bool) {
				drop := loaded && old.expired(now)
				if drop {
					dropped++
				}
				return old, drop || !loaded
			})
		}
		return true
	})
	return dropped
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryKV) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
