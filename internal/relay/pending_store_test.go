package relay

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func testEntry(state, sessionID string, ttl time.Duration) *PendingState {
	now := time.Now()
	return &PendingState{
		State:     state,
		SessionID: sessionID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Resume: ResumeContext{
			Issuer:       "https://idp.example.com",
			ClientID:     "client-1",
			RedirectURI:  "http://localhost:3000/oauth/callback",
			Namespace:    "testns",
			CodeVerifier: "verifier-value",
		},
	}
}

func TestMemoryPendingStorePutTake(t *testing.T) {
	store := NewMemoryPendingStore()
	defer store.Stop()

	entry := testEntry("state-1", "session-1", time.Minute)
	if err := store.Put(entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Take("state-1")
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if !ok {
		t.Fatal("expected entry to be present")
	}
	if got.SessionID != "session-1" {
		t.Errorf("expected session-1, got %s", got.SessionID)
	}
	if got.Resume.CodeVerifier != "verifier-value" {
		t.Errorf("resume context not preserved: %+v", got.Resume)
	}

	// Second take must observe nothing.
	_, ok, err = store.Take("state-1")
	if err != nil {
		t.Fatalf("second Take failed: %v", err)
	}
	if ok {
		t.Error("entry observable after consumption")
	}
}

func TestMemoryPendingStoreTakeUnknown(t *testing.T) {
	store := NewMemoryPendingStore()
	defer store.Stop()

	_, ok, err := store.Take("never-stored")
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unknown state")
	}
}

func TestMemoryPendingStorePutOverwrites(t *testing.T) {
	store := NewMemoryPendingStore()
	defer store.Stop()

	if err := store.Put(testEntry("state-1", "session-old", time.Minute)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(testEntry("state-1", "session-new", time.Minute)); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, ok, _ := store.Take("state-1")
	if !ok {
		t.Fatal("expected entry to be present")
	}
	if got.SessionID != "session-new" {
		t.Errorf("expected last writer to win, got session %s", got.SessionID)
	}

	// The overwritten entry must not linger behind the winner.
	if _, ok, _ := store.Take("state-1"); ok {
		t.Error("stale entry survived overwrite")
	}
}

func TestMemoryPendingStoreTakeReturnsExpired(t *testing.T) {
	store := NewMemoryPendingStore()
	defer store.Stop()

	if err := store.Put(testEntry("state-1", "session-1", -time.Minute)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Take("state-1")
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if !ok {
		t.Fatal("expired entry should still be returned to the caller")
	}
	if !got.Expired(time.Now()) {
		t.Error("expected entry to report expired")
	}
}

func TestMemoryPendingStoreConcurrentTake(t *testing.T) {
	store := NewMemoryPendingStore()
	defer store.Stop()

	if err := store.Put(testEntry("state-1", "session-1", time.Minute)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := store.Take("state-1"); ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly one winner, got %d", count)
	}
}

func TestMemoryPendingStoreArtifacts(t *testing.T) {
	store := NewMemoryPendingStore()
	defer store.Stop()

	key := AuthURLArtifactKey("state-1")
	if err := store.PutArtifact(key, "https://idp.example.com/authorize?x=y", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("PutArtifact failed: %v", err)
	}

	value, ok, err := store.GetArtifact(key)
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if !ok || value != "https://idp.example.com/authorize?x=y" {
		t.Errorf("unexpected artifact: ok=%v value=%q", ok, value)
	}

	if err := store.DeleteArtifact(key); err != nil {
		t.Fatalf("DeleteArtifact failed: %v", err)
	}
	if _, ok, _ := store.GetArtifact(key); ok {
		t.Error("artifact observable after deletion")
	}

	// Deleting an absent artifact is not an error.
	if err := store.DeleteArtifact(key); err != nil {
		t.Errorf("DeleteArtifact on absent key failed: %v", err)
	}
}

func TestMemoryPendingStoreExpiredArtifactRemovedOnRead(t *testing.T) {
	store := NewMemoryPendingStore()
	defer store.Stop()

	key := AuthURLArtifactKey("state-1")
	if err := store.PutArtifact(key, "stale", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("PutArtifact failed: %v", err)
	}

	if _, ok, _ := store.GetArtifact(key); ok {
		t.Error("expired artifact returned")
	}
	if _, ok, _ := store.GetArtifact(key); ok {
		t.Error("expired artifact survived the first read")
	}
}

func TestMemoryPendingStoreCleanup(t *testing.T) {
	store := NewMemoryPendingStore()
	defer store.Stop()

	for i := 0; i < 5; i++ {
		entry := testEntry(fmt.Sprintf("stale-%d", i), "session", -time.Minute)
		if err := store.Put(entry); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := store.Put(testEntry("fresh", "session", time.Minute)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	store.cleanup()

	if _, ok, _ := store.Take("stale-0"); ok {
		t.Error("expired entry survived cleanup")
	}
	if _, ok, _ := store.Take("fresh"); !ok {
		t.Error("unexpired entry removed by cleanup")
	}
}
