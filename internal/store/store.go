// Package store holds the in-memory key/value table served over the wire.
package store

import (
	"sort"
	"sync"

	"github.com/danmuck/keywire/internal/bytebuf"
)

// Store maps 64-bit keys to immutable value buffers. All methods are safe
// for concurrent use; returned buffers share storage with the table and are
// valid after the entry is deleted or replaced.
type Store struct {
	mu    sync.RWMutex
	items map[uint64]bytebuf.Buffer
}

func New() *Store {
	return &Store{
		items: make(map[uint64]bytebuf.Buffer),
	}
}

// Put copies value into an immutable buffer and upserts it under key.
func (s *Store) Put(key uint64, value []byte) {
	s.PutBuffer(key, bytebuf.From(value))
}

// PutBuffer upserts an already-immutable buffer without copying.
func (s *Store) PutBuffer(key uint64, value bytebuf.Buffer) {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

func (s *Store) Get(key uint64) (bytebuf.Buffer, bool) {
	s.mu.RLock()
	value, ok := s.items[key]
	s.mu.RUnlock()
	return value, ok
}

// Delete removes key and reports whether it was present.
func (s *Store) Delete(key uint64) bool {
	s.mu.Lock()
	_, ok := s.items[key]
	delete(s.items, key)
	s.mu.Unlock()
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	n := len(s.items)
	s.mu.RUnlock()
	return n
}

// Keys returns all keys in ascending order.
func (s *Store) Keys() []uint64 {
	s.mu.RLock()
	keys := make([]uint64, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Stats summarizes table size for the admin plane.
type Stats struct {
	Keys  int   `json:"keys"`
	Bytes int64 `json:"bytes"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	st := Stats{Keys: len(s.items)}
	for _, v := range s.items {
		st.Bytes += int64(v.Len())
	}
	s.mu.RUnlock()
	return st
}
