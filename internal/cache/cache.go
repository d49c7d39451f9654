// Package cache keeps last-known-good post lists so reads can degrade
// instead of failing when the post store is unreachable.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hpungsan/cadence/internal/post"
)

// Snapshot is the last successfully fetched post list for a filter key.
type Snapshot struct {
	Posts     []post.Post `json:"posts"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// Snapshots stores snapshots by filter key. Load reports ok=false when no
// snapshot exists or it has expired.
type Snapshots interface {
	Save(ctx context.Context, key string, snap Snapshot) error
	Load(ctx context.Context, key string) (snap Snapshot, ok bool, err error)
}

// Memory is an in-process Snapshots implementation.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]memoryItem
}

type memoryItem struct {
	snap    Snapshot
	savedAt time.Time
}

// NewMemory returns a Memory store. A ttl of zero keeps snapshots forever.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, items: make(map[string]memoryItem)}
}

// Save replaces the snapshot for key.
func (m *Memory) Save(_ context.Context, key string, snap Snapshot) error {
	snap.Posts = append([]post.Post(nil), snap.Posts...)
	m.mu.Lock()
	m.items[key] = memoryItem{snap: snap, savedAt: m.now()}
	m.mu.Unlock()
	return nil
}

// Load returns the snapshot for key if it has not expired.
func (m *Memory) Load(_ context.Context, key string) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return Snapshot{}, false, nil
	}
	if m.ttl > 0 && m.now().Sub(item.savedAt) > m.ttl {
		delete(m.items, key)
		return Snapshot{}, false, nil
	}
	snap := item.snap
	snap.Posts = append([]post.Post(nil), snap.Posts...)
	return snap, true, nil
}
