// Package redisxtest provides an in-memory redisx.Client for tests.
package redisxtest

import (
	"context"
	"sync"
	"time"
)

// Fake is an in-memory redisx.Client. TTLs are recorded, not enforced.
type Fake struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	lists  map[string][]string

	SetExCalls int
	SetNXCalls int
	DelCalls   int
	LPushCalls int
}

func New() *Fake {
	return &Fake{
		values: map[string]string{},
		ttls:   map[string]time.Duration{},
		lists:  map[string][]string{},
	}
}

func (f *Fake) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.values[key]
	return val, ok, nil
}

func (f *Fake) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetExCalls++
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *Fake) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetNXCalls++
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value
	f.ttls[key] = ttl
	return true, nil
}

func (f *Fake) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DelCalls++
	for _, key := range keys {
		delete(f.values, key)
		delete(f.ttls, key)
		delete(f.lists, key)
	}
	return nil
}

func (f *Fake) LPush(_ context.Context, key string, values ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LPushCalls++
	for _, v := range values {
		f.lists[key] = append([]string{v}, f.lists[key]...)
	}
	return nil
}

func (f *Fake) RPop(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.lists[key]
	if len(list) == 0 {
		return "", false, nil
	}
	last := list[len(list)-1]
	f.lists[key] = list[:len(list)-1]
	return last, true, nil
}

// Set seeds a plain value, bypassing call counters.
func (f *Fake) Set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

// Value returns the stored value for key, if any.
func (f *Fake) Value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.values[key]
	return val, ok
}

// TTL returns the recorded TTL for key, if any was set.
func (f *Fake) TTL(key string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ttl, ok := f.ttls[key]
	return ttl, ok
}

// ListLen returns the current waiting-list length for key.
func (f *Fake) ListLen(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists[key])
}
