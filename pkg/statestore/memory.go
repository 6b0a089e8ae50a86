package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/platefulhq/plateful-backend/pkg/clock"
)

// MemoryStore is an in-process Store honoring TTLs against an injected clock.
// It backs the engine test suites and local development without redis.
type MemoryStore struct {
	mu    sync.Mutex
	clk   clock.Clock
	items map[string]memoryEntry
	zsets map[string]map[string]float64
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func NewMemory(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &MemoryStore{
		clk:   clk,
		items: make(map[string]memoryEntry),
		zsets: make(map[string]map[string]float64),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveEntry(key)
	if !ok {
		return false, nil
	}
	if dest == nil {
		return true, nil
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = s.clk.Now().Add(ttl)
	}
	s.items[key] = entry
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	delete(s.zsets, key)
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.liveEntry(key)
	return ok, nil
}

func (s *MemoryStore) Increment(ctx context.Context, key string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustCounter(key, amount)
}

func (s *MemoryStore) Decrement(ctx context.Context, key string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustCounter(key, -amount)
}

func (s *MemoryStore) DecrementFloor(ctx context.Context, key string, amount int64) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.counterValue(key)
	if err != nil {
		return false, 0, err
	}
	if current-amount < 0 {
		return false, current, nil
	}
	updated, err := s.adjustCounter(key, -amount)
	if err != nil {
		return false, 0, err
	}
	return true, updated, nil
}

func (s *MemoryStore) ZAdd(ctx context.Context, key, member string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.zsets[key]
	if !ok {
		set = make(map[string]float64)
		s.zsets[key] = set
	}
	set[member] = score
	return nil
}

func (s *MemoryStore) ZRange(ctx context.Context, key string, start, end int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.zsets[key]
	type entry struct {
		member string
		score  float64
	}
	entries := make([]entry, 0, len(set))
	for member, score := range set {
		entries = append(entries, entry{member: member, score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score == entries[j].score {
			return entries[i].member < entries[j].member
		}
		return entries[i].score < entries[j].score
	})

	if end < 0 {
		end = int64(len(entries)) + end
	}
	members := []string{}
	for i, e := range entries {
		if int64(i) < start || int64(i) > end {
			continue
		}
		members = append(members, e.member)
	}
	return members, nil
}

func (s *MemoryStore) ZRem(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.zsets[key], member)
	return nil
}

func (s *MemoryStore) ZCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.zsets[key])), nil
}

// liveEntry returns the entry at key, lazily evicting it when expired.
// Callers must hold the mutex.
func (s *MemoryStore) liveEntry(key string) (memoryEntry, bool) {
	entry, ok := s.items[key]
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(s.clk.Now()) {
		delete(s.items, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *MemoryStore) counterValue(key string) (int64, error) {
	entry, ok := s.liveEntry(key)
	if !ok {
		return 0, nil
	}
	value, err := strconv.ParseInt(string(entry.payload), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s holds non-integer value", key)
	}
	return value, nil
}

func (s *MemoryStore) adjustCounter(key string, delta int64) (int64, error) {
	current, err := s.counterValue(key)
	if err != nil {
		return 0, err
	}
	updated := current + delta
	entry := s.items[key]
	entry.payload = []byte(strconv.FormatInt(updated, 10))
	s.items[key] = entry
	return updated, nil
}
