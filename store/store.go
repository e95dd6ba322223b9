// Package store implements the keyspace engine: a shared, concurrently
// accessed mapping from byte-string keys to byte-string values with
// optional absolute expiry, guarded by a single reader-writer lock.
package store

import (
	"bytes"
	"sync"
	"time"
)

// Entry is one keyspace value plus its optional absolute expiry
// deadline. It is also the shape the rdb package snapshots to and
// loads from disk.
type Entry struct {
	Value     []byte
	Expiry    time.Time
	HasExpiry bool
}

// Expired reports whether the entry must be treated as absent at t.
func (e Entry) Expired(t time.Time) bool {
	return e.HasExpiry && !t.Before(e.Expiry)
}

// Store is the shared keyspace. The zero value is not usable; use New.
type Store struct {
	mu   sync.RWMutex
	data map[string]Entry

	// now is overridable in tests; nil means time.Now.
	now func() time.Time
}

// New creates an empty keyspace.
func New() *Store {
	return &Store{data: make(map[string]Entry)}
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Set unconditionally replaces the entry for key, including clearing
// any prior expiry when hasExpiry is false.
func (s *Store) Set(key string, value []byte, expiry time.Time, hasExpiry bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = Entry{Value: value, Expiry: expiry, HasExpiry: hasExpiry}
}

// Get returns the value for key, or ok=false if the key is absent or
// its expiry deadline has passed. An expired entry is never returned.
func (s *Store) Get(key string) (value []byte, ok bool) {
	s.mu.RLock()
	e, found := s.data[key]
	s.mu.RUnlock()

	if !found || e.Expired(s.clock()) {
		return nil, false
	}
	return e.Value, true
}

// Keys returns every key containing pattern with all '*' characters
// stripped from it first; a coarse substring filter, not a glob match.
// Expired keys are excluded. Order is unspecified.
func (s *Store) Keys(pattern string) []string {
	needle := stripStars(pattern)
	now := s.clock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if e.Expired(now) {
			continue
		}
		if bytes.Contains([]byte(k), []byte(needle)) {
			out = append(out, k)
		}
	}
	return out
}

func stripStars(pattern string) string {
	if !bytes.ContainsRune([]byte(pattern), '*') {
		return pattern
	}
	out := make([]byte, 0, len(pattern))
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '*' {
			out = append(out, pattern[i])
		}
	}
	return string(out)
}

// Snapshot returns a shallow copy of every entry currently in the
// keyspace, including ones with expiry deadlines already in the past.
// It is the read side of the seam the rdb package saves from; it takes
// a shared lock, not an exclusive one, matching the RDB save contract.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Load replaces the entire keyspace with entries, under an exclusive
// lock. It is the write side of the seam the rdb package's bootstrap
// loader uses.
func (s *Store) Load(entries map[string]Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make(map[string]Entry, len(entries))
	for k, v := range entries {
		data[k] = v
	}
	s.data = data
}

// Len reports the number of entries currently stored, including any
// whose expiry has already passed: Get and Keys skip expired entries
// but never remove them.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
