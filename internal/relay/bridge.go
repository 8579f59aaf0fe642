package relay

import (
	"sync"

	"authrelay/pkg/logging"
)

// NotificationBridge delivers a completed attempt's result directly to the
// initiating context, when a reference to it is still available. Delivery is
// fire-and-forget: failures are expected (severed reference, no listener)
// and callers always swallow them. The ResultStore remains the delivery path
// of record.
type NotificationBridge interface {
	Notify(sessionID string, msg ResultMessage) error
}

// ChannelBridge is an in-process NotificationBridge backed by per-session
// buffered channels. The initiator registers a listener before redirecting;
// the reconciler pushes the result into it on completion.
type ChannelBridge struct {
	mu        sync.Mutex
	listeners map[string]chan ResultMessage
}

// NewChannelBridge creates a new in-process notification bridge.
func NewChannelBridge() *ChannelBridge {
	return &ChannelBridge{
		listeners: make(map[string]chan ResultMessage),
	}
}

// Listen registers a listener for the given session and returns its channel.
// A second Listen for the same session replaces the first.
func (b *ChannelBridge) Listen(sessionID string) <-chan ResultMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ResultMessage, 1)
	b.listeners[sessionID] = ch
	return ch
}

// Release removes the listener for the given session. Safe to call for a
// session that was never registered.
func (b *ChannelBridge) Release(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.listeners, sessionID)
}

// Notify delivers the message to the session's listener without blocking.
// Returns a DeliveryFailed error when no listener is registered or its
// buffer is full; callers must treat that as expected.
func (b *ChannelBridge) Notify(sessionID string, msg ResultMessage) error {
	b.mu.Lock()
	ch := b.listeners[sessionID]
	b.mu.Unlock()

	if ch == nil {
		return newFlowError(FailureDeliveryFailed, "no listener registered for session")
	}

	select {
	case ch <- msg:
		logging.Debug("Bridge", "Delivered result to session=%s", logging.TruncateSessionID(sessionID))
		return nil
	default:
		return newFlowError(FailureDeliveryFailed, "listener channel full")
	}
}
