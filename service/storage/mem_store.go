package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore 内存后端：本地联调和测试用，和 Redis 后端走同一个接口。
// TTL 懒过期：读到过期键当作不存在，顺手删掉。
type memStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	value    string
	expireAt time.Time // 零值表示不过期
}

func NewMemStore() Store {
	return &memStore{entries: make(map[string]memEntry)}
}

func (s *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if e.expired() {
		// 拿写锁后重查：读锁放开的间隙里键可能被重写，不能误删新值
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.expired() {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *memStore) Set(ctx context.Context, key, value string, opts *SetOpts) error {
	var exp time.Time
	if opts != nil && opts.TTL > 0 {
		exp = time.Now().Add(opts.TTL)
	}
	s.mu.Lock()
	s.entries[key] = memEntry{value: value, expireAt: exp}
	s.mu.Unlock()
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *memStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	keys := make([]string, 0, 8)
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) && !e.expired() {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }

func (s *memStore) Close() error { return nil }

func (e memEntry) expired() bool {
	return !e.expireAt.IsZero() && time.Now().After(e.expireAt)
}
