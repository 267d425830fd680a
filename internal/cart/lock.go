package cart

import (
	"context"
	"sort"
	"sync"
)

// keyedLock serializes cart mutations per item id. A mutation holds the locks
// of every item it touches from snapshot to reconciliation.
type keyedLock struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{slots: make(map[string]*slot)}
}

// lock acquires every key in sorted order so overlapping key sets cannot deadlock.
func (k *keyedLock) lock(ctx context.Context, keys ...string) (func(), error) {
	keys = uniqueSorted(keys)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		sl := k.ref(key)
		select {
		case sl.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			k.unref(key)
			k.release(held)
			return nil, ctx.Err()
		}
	}
	return func() { k.release(held) }, nil
}

func (k *keyedLock) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		k.mu.Lock()
		sl := k.slots[keys[i]]
		k.mu.Unlock()
		<-sl.ch
		k.unref(keys[i])
	}
}

func (k *keyedLock) ref(key string) *slot {
	k.mu.Lock()
	defer k.mu.Unlock()
	sl, ok := k.slots[key]
	if !ok {
		sl = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = sl
	}
	sl.refs++
	return sl
}

func (k *keyedLock) unref(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	sl := k.slots[key]
	sl.refs--
	if sl.refs == 0 {
		delete(k.slots, key)
	}
}

func uniqueSorted(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, key := range out {
		if i > 0 && key == out[n-1] {
			continue
		}
		out[n] = key
		n++
	}
	return out[:n]
}
