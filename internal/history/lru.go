package history

import (
	"container/list"
	"sync"
)

// LRUStore is an in-memory LRU cache that delegates to a backing Store
// on miss. Saves are written through.
type LRUStore struct {
	mu   sync.Mutex
	cap  int
	back Store

	order *list.List // most recent at front; values are *lruEntry
	items map[string]*list.Element
}

type lruEntry struct {
	key string
	rec *Record
}

// NewLRUStore creates an LRU cache with the given capacity that delegates
// to back on cache misses. Capacity must be >= 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		order: list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

// Save writes the record to the cache and delegates to the backing store.
func (s *LRUStore) Save(rec *Record) error {
	s.mu.Lock()
	s.insert(rec.ID, rec)
	s.mu.Unlock()

	return s.back.Save(rec)
}

// Load checks the cache first. On miss, loads from the backing store and
// promotes the record into the cache.
func (s *LRUStore) Load(runID string) (*Record, error) {
	s.mu.Lock()
	if el, ok := s.items[runID]; ok {
		s.order.MoveToFront(el)
		rec := el.Value.(*lruEntry).rec
		s.mu.Unlock()
		return rec, nil
	}
	s.mu.Unlock()

	rec, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.insert(runID, rec)
	s.mu.Unlock()
	return rec, nil
}

// insert adds or refreshes an entry, evicting the least recently used
// one when over capacity. Caller holds mu.
func (s *LRUStore) insert(key string, rec *Record) {
	if el, ok := s.items[key]; ok {
		el.Value.(*lruEntry).rec = rec
		s.order.MoveToFront(el)
		return
	}
	s.items[key] = s.order.PushFront(&lruEntry{key: key, rec: rec})
	if s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*lruEntry).key)
	}
}
