package reportstore

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheEntries = 256

type MetricsSnapshot struct {
	Hits        uint64
	Misses      uint64
	OriginReads uint64
	OriginErr   uint64
}

type Metrics struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	originReads atomic.Uint64
	originErr   atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		OriginReads: m.originReads.Load(),
		OriginErr:   m.originErr.Load(),
	}
}

// CachedStore fronts a slower origin with an in-process LRU of reports.
// Reports are immutable once written, so Get results never go stale except
// through Put, which refreshes the entry.
type CachedStore struct {
	origin  Store
	cache   *lru.Cache[string, StoredReport]
	metrics Metrics
}

func NewCachedStore(origin Store, entries int) *CachedStore {
	if entries <= 0 {
		entries = DefaultCacheEntries
	}
	c, _ := lru.New[string, StoredReport](entries)
	return &CachedStore{origin: origin, cache: c}
}

func (s *CachedStore) Put(ctx context.Context, r StoredReport) error {
	if err := s.origin.Put(ctx, r); err != nil {
		return err
	}
	if id, err := normalizeID(r.ID); err == nil {
		r.ID = id
		s.cache.Add(id, cloneReport(r))
	}
	return nil
}

func (s *CachedStore) Get(ctx context.Context, id string) (StoredReport, error) {
	key, err := normalizeID(id)
	if err != nil {
		return StoredReport{}, err
	}
	if r, ok := s.cache.Get(key); ok {
		s.metrics.hits.Add(1)
		return cloneReport(r), nil
	}
	s.metrics.misses.Add(1)
	s.metrics.originReads.Add(1)
	r, err := s.origin.Get(ctx, key)
	if err != nil {
		s.metrics.originErr.Add(1)
		return StoredReport{}, err
	}
	s.cache.Add(key, cloneReport(r))
	return r, nil
}

// List always goes to the origin; other writers may share it.
func (s *CachedStore) List(ctx context.Context) ([]string, error) {
	return s.origin.List(ctx)
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	return s.metrics.snapshot()
}
