package consumer

import (
	"context"
	"sync"
	"time"
)

// fakeKV 内存 KVStore，时钟可注入以便测试过期语义
type fakeKV struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]fakeEntry
}

type fakeEntry struct {
	data     []byte
	deadline time.Time // 零值表示不过期
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		now:     time.Now,
		entries: make(map[string]fakeEntry),
	}
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.deadline.IsZero() && f.now().After(entry.deadline) {
		delete(f.entries, key)
		return nil, ErrCacheMiss
	}
	return entry.data, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := fakeEntry{data: value}
	if ttl > 0 {
		entry.deadline = f.now().Add(ttl)
	}
	f.entries[key] = entry
	return nil
}
