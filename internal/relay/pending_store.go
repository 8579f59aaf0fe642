package relay

import (
	"sync"
	"time"

	"authrelay/pkg/logging"
)

// PendingStateStore is durable keyed storage for in-flight authorization
// attempts. Implementations may back it with any keyed durable medium.
//
// Take is the serialization point of the whole protocol: it must behave as an
// atomic read-and-delete so that only the first caller observes a given
// entry and every later caller observes "not found".
type PendingStateStore interface {
	// Put persists the entry, overwriting any existing entry for the same
	// state value (last-writer-wins).
	Put(entry *PendingState) error

	// Take atomically reads and removes the entry for the given state value.
	// A missing or already-consumed entry is reported via ok=false, never as
	// an error. Expired entries are still returned; the caller treats them
	// as absent (the removal has already happened).
	Take(state string) (*PendingState, bool, error)

	// PutArtifact persists a secondary record tied to an attempt, such as
	// the authorization URL it used.
	PutArtifact(key, value string, expiresAt time.Time) error

	// GetArtifact returns a secondary record if present and unexpired.
	// Expired artifacts are removed on read.
	GetArtifact(key string) (string, bool, error)

	// DeleteArtifact removes a secondary record. Removing an absent record
	// is not an error.
	DeleteArtifact(key string) error
}

type artifact struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *artifact) expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// MemoryPendingStore is a thread-safe in-memory PendingStateStore for flows
// where initiator and callback handler share a process.
type MemoryPendingStore struct {
	mu        sync.RWMutex
	entries   map[string]*PendingState
	artifacts map[string]*artifact

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// NewMemoryPendingStore creates a new in-memory pending-state store.
// It starts a background goroutine for periodic cleanup of expired entries;
// call Stop when done with the store.
func NewMemoryPendingStore() *MemoryPendingStore {
	s := &MemoryPendingStore{
		entries:         make(map[string]*PendingState),
		artifacts:       make(map[string]*artifact),
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Put stores the entry under its derived key, overwriting any prior entry.
func (s *MemoryPendingStore) Put(entry *PendingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Key()] = entry
	logging.Debug("Store", "Stored pending attempt session=%s (expires: %v)",
		logging.TruncateSessionID(entry.SessionID), entry.ExpiresAt)
	return nil
}

// Take atomically reads and removes the entry for the given state value.
func (s *MemoryPendingStore) Take(state string) (*PendingState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := PendingKey(state)
	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	delete(s.entries, key)
	return entry, true, nil
}

// PutArtifact stores a secondary record tied to an attempt.
func (s *MemoryPendingStore) PutArtifact(key, value string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts[key] = &artifact{Value: value, ExpiresAt: expiresAt}
	return nil
}

// GetArtifact returns a secondary record if present and unexpired.
func (s *MemoryPendingStore) GetArtifact(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.artifacts[key]
	if !ok {
		return "", false, nil
	}
	if a.expired(time.Now()) {
		delete(s.artifacts, key)
		return "", false, nil
	}
	return a.Value, true, nil
}

// DeleteArtifact removes a secondary record.
func (s *MemoryPendingStore) DeleteArtifact(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.artifacts, key)
	return nil
}

// Stop stops the background cleanup goroutine.
func (s *MemoryPendingStore) Stop() {
	close(s.stopCleanup)
}

// cleanupLoop periodically removes expired entries from the store.
func (s *MemoryPendingStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired entries and artifacts from the store.
func (s *MemoryPendingStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			count++
		}
	}
	for key, a := range s.artifacts {
		if a.expired(now) {
			delete(s.artifacts, key)
			count++
		}
	}

	if count > 0 {
		logging.Debug("Store", "Cleaned up %d expired pending records", count)
	}
}
