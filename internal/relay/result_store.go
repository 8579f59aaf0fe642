package relay

import (
	"sync"
	"time"

	"authrelay/pkg/logging"
)

// ResultStore is durable keyed storage for completed-flow outcomes, written
// by the callback context and polled by the initiator. Outcomes are addressed
// by namespace plus session id; the namespace travels with the pending
// attempt's resume context, so the callback context publishes into the
// initiator's namespace even when the two sides were configured separately.
//
// Publish is last-writer-wins: under correct single consumption of the
// pending entry a double publish cannot happen, but it must not fail if it
// does. Poll is non-blocking and idempotent; the initiator may observe the
// same outcome any number of times.
type ResultStore interface {
	// Publish durably records the outcome under the namespace and session id.
	Publish(namespace, sessionID string, outcome *Outcome) error

	// Poll returns the outcome if present and not expired. Expired entries
	// are removed on read and reported as absent.
	Poll(namespace, sessionID string) (*Outcome, bool, error)

	// Delete removes the outcome once the consumer is done with it.
	// Removing an absent outcome is not an error.
	Delete(namespace, sessionID string) error
}

// MemoryResultStore is a thread-safe in-memory ResultStore for flows where
// initiator and callback handler share a process.
type MemoryResultStore struct {
	mu       sync.RWMutex
	outcomes map[string]*Outcome

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// NewMemoryResultStore creates a new in-memory result store. It starts a
// background goroutine for periodic cleanup of stale outcomes; call Stop when
// done with the store.
func NewMemoryResultStore() *MemoryResultStore {
	s := &MemoryResultStore{
		outcomes:        make(map[string]*Outcome),
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Publish durably records the outcome under the namespace and session id.
func (s *MemoryResultStore) Publish(namespace, sessionID string, outcome *Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcomes[OutcomeKey(namespace, sessionID)] = outcome
	logging.Debug("Store", "Published outcome for session=%s success=%v",
		logging.TruncateSessionID(sessionID), outcome.Success)
	return nil
}

// Poll returns the outcome for the session id if present and not expired.
func (s *MemoryResultStore) Poll(namespace, sessionID string) (*Outcome, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := OutcomeKey(namespace, sessionID)
	outcome, ok := s.outcomes[key]
	if !ok {
		return nil, false, nil
	}
	if outcome.Expired(time.Now()) {
		delete(s.outcomes, key)
		return nil, false, nil
	}
	return outcome, true, nil
}

// Delete removes the outcome for the session id.
func (s *MemoryResultStore) Delete(namespace, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.outcomes, OutcomeKey(namespace, sessionID))
	return nil
}

// Stop stops the background cleanup goroutine.
func (s *MemoryResultStore) Stop() {
	close(s.stopCleanup)
}

// cleanupLoop periodically removes stale outcomes from the store.
func (s *MemoryResultStore) cleanupLoop() {
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

// cleanup removes all stale outcomes from the store.
func (s *MemoryResultStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for key, outcome := range s.outcomes {
		if outcome.Expired(now) {
			delete(s.outcomes, key)
			count++
		}
	}

	if count > 0 {
		logging.Debug("Store", "Cleaned up %d stale outcomes", count)
	}
}
