package kv

import (
	"sort"
	"sync"
)

// MemoryStore keeps entries in a map. A positive quota bounds the total
// bytes of keys plus values.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]string
	size  int
	quota int
}

type MemoryOption func(*MemoryStore)

// WithQuota caps the store at n bytes. Writes that would exceed it fail with ErrQuotaExceeded.
func WithQuota(n int) MemoryOption {
	return func(s *MemoryStore) { s.quota = n }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{data: make(map[string]string)}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.size + len(value)
	if old, ok := s.data[key]; ok {
		next -= len(old)
	} else {
		next += len(key)
	}
	if s.quota > 0 && next > s.quota {
		return ErrQuotaExceeded
	}
	s.data[key] = value
	s.size = next
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.data[key]; ok {
		s.size -= len(key) + len(old)
		delete(s.data, key)
	}
	return nil
}

func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
