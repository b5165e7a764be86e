package cmap

import (
	"fmt"
	"sync"

	"github.com/spaolacci/murmur3"
)

// ShardCount is the number of shards; a power of two.
const ShardCount = 16

// Map is a concurrent sharded map.
type Map[K comparable, V any] struct {
	shards    []*shard[K, V]
	shardMask uint64
	seed      uint32
}

type shard[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// New creates an empty map.
func New[K comparable, V any]() *Map[K, V] {
	m := &Map[K, V]{
		shards:    make([]*shard[K, V], ShardCount),
		shardMask: uint64(ShardCount - 1),
		seed:      0x68677465,
	}
	for i := range m.shards {
		m.shards[i] = &shard[K, V]{items: make(map[K]V)}
	}
	return m
}

func keyString[K comparable](key K) string {
	switch k := any(key).(type) {
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprintf("%v", key)
	}
}

func (m *Map[K, V]) getShard(key K) *shard[K, V] {
	h := murmur3.Sum64WithSeed([]byte(keyString(key)), m.seed)
	return m.shards[h&m.shardMask]
}

// Get returns the value stored for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.getShard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Set stores value under key.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.getShard(key)
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

// Delete removes key.
func (m *Map[K, V]) Delete(key K) {
	s := m.getShard(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Count returns the number of items.
func (m *Map[K, V]) Count() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}
