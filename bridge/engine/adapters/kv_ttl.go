// Package adapters provides concrete implementations of the engine ports.
package adapters

import (
	"context"
	"sync"
	"time"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

// TTLStore is an in-process KVStore with per-entry TTL and LRU eviction.
// It backs the cooldown ledger in single-host deployments; multi-host
// deployments should point the same port at a shared store instead.
type TTLStore struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*ttlItem
	head     *ttlItem
	tail     *ttlItem
}

type ttlItem struct {
	key       string
	value     string
	expiresAt time.Time
	prev      *ttlItem
	next      *ttlItem
}

func NewTTLStore(capacity int) *TTLStore {
	if capacity <= 0 {
		capacity = 1024
	}
	return &TTLStore{
		capacity: capacity,
		items:    make(map[string]*ttlItem),
	}
}

// Set stores a value that expires after ttl.
func (s *TTLStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Now().Add(ttl)

	if item, exists := s.items[key]; exists {
		item.value = value
		item.expiresAt = expiresAt
		s.moveToFront(item)
		return nil
	}

	item := &ttlItem{key: key, value: value, expiresAt: expiresAt}
	s.addToFront(item)
	s.items[key] = item

	if len(s.items) > s.capacity {
		s.evictLRU()
	}
	return nil
}

// Get retrieves a live value. Expired entries are removed on access.
func (s *TTLStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[key]
	if !exists {
		return "", false, nil
	}

	if time.Now().After(item.expiresAt) {
		s.removeItem(item)
		delete(s.items, key)
		return "", false, nil
	}

	s.moveToFront(item)
	return item.value, true, nil
}

// CheckHealth probes the store with a short-lived write/read cycle.
func (s *TTLStore) CheckHealth(ctx context.Context) bool {
	if err := s.Set(ctx, "health:probe", "1", time.Second); err != nil {
		return false
	}
	_, ok, err := s.Get(ctx, "health:probe")
	return ok && err == nil
}

func (s *TTLStore) moveToFront(item *ttlItem) {
	if item == s.head {
		return
	}
	s.removeItem(item)
	s.addToFront(item)
}

func (s *TTLStore) addToFront(item *ttlItem) {
	item.next = s.head
	item.prev = nil

	if s.head != nil {
		s.head.prev = item
	}
	s.head = item

	if s.tail == nil {
		s.tail = item
	}
}

func (s *TTLStore) removeItem(item *ttlItem) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		s.head = item.next
	}

	if item.next != nil {
		item.next.prev = item.prev
	} else {
		s.tail = item.prev
	}

	item.prev = nil
	item.next = nil
}

func (s *TTLStore) evictLRU() {
	if s.tail == nil {
		return
	}
	item := s.tail
	s.removeItem(item)
	delete(s.items, item.key)
}

var (
	_ ports.KVStore       = (*TTLStore)(nil)
	_ ports.HealthChecker = (*TTLStore)(nil)
)
