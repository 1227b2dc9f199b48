package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ceph/ceph-tools/internal/must"
)

var ErrNotFound = errors.New("cache entry not found")

// DynamicValue computes the value of an entry each time it expires.
type DynamicValue[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	mu            sync.Mutex
	expiresAt     time.Time
	v             V
	fn            DynamicValue[V]
	cacheDuration time.Duration
}

func (e *entry[V]) isExpired() bool {
	return time.Since(e.expiresAt) > 0
}

func (e *entry[V]) isDynamic() bool {
	return e.fn != nil
}

func (e *entry[V]) refresh(ctx context.Context) error {
	v, err := e.fn(ctx)
	if err != nil {
		return err
	}
	e.v = v
	e.expiresAt = time.Now().Add(e.cacheDuration)
	return nil
}

// Memory is an in-process cache whose entries expire after a TTL. Dynamic
// entries are recomputed instead of being evicted.
type Memory[V any] struct {
	m          *sync.Map
	defaultTTL time.Duration
}

// NewMemory starts a cache. Expired entries are swept every second until ctx
// is done.
func NewMemory[V any](ctx context.Context, defaultTTL time.Duration) *Memory[V] {
	cache := &Memory[V]{
		m:          new(sync.Map),
		defaultTTL: defaultTTL,
	}

	go cache.expirer(ctx)

	return cache
}

func (m *Memory[V]) ttl(ttl []time.Duration) time.Duration {
	if len(ttl) > 0 {
		return ttl[0]
	}
	return m.defaultTTL
}

func (m *Memory[V]) Set(k string, v V, ttl ...time.Duration) {
	duration := m.ttl(ttl)
	m.m.Store(k, &entry[V]{
		expiresAt:     time.Now().Add(duration),
		v:             v,
		cacheDuration: duration,
	})

	slog.Debug("new cache entry", "key", k)
}

// SetDynamic stores fn under k. The value is computed on the first Get.
func (m *Memory[V]) SetDynamic(k string, fn DynamicValue[V], ttl ...time.Duration) {
	duration := m.ttl(ttl)
	// stored as expired to force a refresh on the first Get
	m.m.Store(k, &entry[V]{
		expiresAt:     time.Now(),
		fn:            fn,
		cacheDuration: duration,
	})

	slog.Debug("new dynamic cache entry", "key", k)
}

func (m *Memory[V]) GetOrSet(ctx context.Context, key string, valueFunc DynamicValue[V], ttl ...time.Duration) (v V, err error) {
	v, err = m.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		v, err = valueFunc(ctx)
		if err != nil {
			return v, err
		}

		m.Set(key, v, ttl...)
		return v, nil
	}

	return v, err
}

func (m *Memory[V]) Get(ctx context.Context, k string) (v V, err error) {
	loaded, found := m.m.Load(k)
	if !found {
		return v, ErrNotFound
	}

	entry, ok := loaded.(*entry[V])
	must.Assert(ok, "loaded value is not an entry")

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.isExpired() {
		return entry.v, nil
	}

	if !entry.isDynamic() {
		slog.Debug("cache expired", "key", k)
		m.m.Delete(k)
		return v, ErrNotFound
	}

	if err := entry.refresh(ctx); err != nil {
		return v, err
	}
	slog.Debug("dynamic entry refreshed", "key", k)

	return entry.v, nil
}

func (m *Memory[V]) expirer(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.m.Range(func(k, v any) bool {
			entry, ok := v.(*entry[V])
			must.Assert(ok, "loaded value is not an entry")

			entry.mu.Lock()
			defer entry.mu.Unlock()

			if entry.isExpired() && !entry.isDynamic() {
				slog.Debug("cache expired", "key", k)
				m.m.Delete(k)
			}

			return true
		})
	}
}
