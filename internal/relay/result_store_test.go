package relay

import (
	"testing"
	"time"
)

func testOutcome(success bool, ttl time.Duration) *Outcome {
	now := time.Now()
	o := &Outcome{
		Success:   success,
		Timestamp: now,
		ExpiresAt: now.Add(ttl),
	}
	if !success {
		o.Error = "something went wrong"
	}
	return o
}

func TestMemoryResultStorePublishPoll(t *testing.T) {
	store := NewMemoryResultStore()
	defer store.Stop()

	if err := store.Publish("testns", "session-1", testOutcome(true, time.Minute)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got, ok, err := store.Poll("testns", "session-1")
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if !ok {
		t.Fatal("expected outcome to be present")
	}
	if !got.Success {
		t.Error("expected a success outcome")
	}

	// Poll is idempotent.
	if _, ok, _ := store.Poll("testns", "session-1"); !ok {
		t.Error("outcome gone after first poll")
	}
}

func TestMemoryResultStorePollUnknown(t *testing.T) {
	store := NewMemoryResultStore()
	defer store.Stop()

	_, ok, err := store.Poll("testns", "never-published")
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unknown session")
	}
}

func TestMemoryResultStorePublishOverwrites(t *testing.T) {
	store := NewMemoryResultStore()
	defer store.Stop()

	if err := store.Publish("testns", "session-1", testOutcome(false, time.Minute)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := store.Publish("testns", "session-1", testOutcome(true, time.Minute)); err != nil {
		t.Fatalf("second Publish failed: %v", err)
	}

	got, ok, _ := store.Poll("testns", "session-1")
	if !ok {
		t.Fatal("expected outcome to be present")
	}
	if !got.Success {
		t.Error("expected last writer to win")
	}
}

func TestMemoryResultStoreExpiredRemovedOnPoll(t *testing.T) {
	store := NewMemoryResultStore()
	defer store.Stop()

	if err := store.Publish("testns", "session-1", testOutcome(true, -time.Second)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if _, ok, _ := store.Poll("testns", "session-1"); ok {
		t.Error("expired outcome returned")
	}
	if _, ok, _ := store.Poll("testns", "session-1"); ok {
		t.Error("expired outcome survived the first poll")
	}
}

func TestMemoryResultStoreDelete(t *testing.T) {
	store := NewMemoryResultStore()
	defer store.Stop()

	if err := store.Publish("testns", "session-1", testOutcome(true, time.Minute)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := store.Delete("testns", "session-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Poll("testns", "session-1"); ok {
		t.Error("outcome observable after deletion")
	}

	if err := store.Delete("testns", "session-1"); err != nil {
		t.Errorf("Delete on absent session failed: %v", err)
	}
}

func TestMemoryResultStoreNamespaceIsolation(t *testing.T) {
	store := NewMemoryResultStore()
	defer store.Stop()

	if err := store.Publish("ns-a", "session-1", testOutcome(true, time.Minute)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// The derived keys differ per namespace, so the same session id in a
	// different namespace stays invisible.
	if OutcomeKey("ns-a", "session-1") == OutcomeKey("ns-b", "session-1") {
		t.Error("outcome keys collide across namespaces")
	}
	if _, ok, _ := store.Poll("ns-b", "session-1"); ok {
		t.Error("outcome visible in another namespace")
	}
	if _, ok, _ := store.Poll("ns-a", "session-1"); !ok {
		t.Error("outcome missing in its own namespace")
	}
}

func TestMemoryResultStoreCleanup(t *testing.T) {
	store := NewMemoryResultStore()
	defer store.Stop()

	if err := store.Publish("testns", "stale", testOutcome(true, -time.Minute)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := store.Publish("testns", "fresh", testOutcome(true, time.Minute)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	store.cleanup()

	if _, ok, _ := store.Poll("testns", "stale"); ok {
		t.Error("stale outcome survived cleanup")
	}
	if _, ok, _ := store.Poll("testns", "fresh"); !ok {
		t.Error("fresh outcome removed by cleanup")
	}
}
