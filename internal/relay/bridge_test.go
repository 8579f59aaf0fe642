package relay

import (
	"errors"
	"testing"
)

func TestChannelBridgeDelivery(t *testing.T) {
	bridge := NewChannelBridge()
	ch := bridge.Listen("session-1")

	msg := ResultMessage{Type: ResultMessageType, Success: true}
	if err := bridge.Notify("session-1", msg); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case got := <-ch:
		if got.Type != ResultMessageType || !got.Success {
			t.Errorf("unexpected message: %+v", got)
		}
	default:
		t.Fatal("expected a buffered message")
	}
}

func TestChannelBridgeNoListener(t *testing.T) {
	bridge := NewChannelBridge()

	err := bridge.Notify("nobody", ResultMessage{Type: ResultMessageType})
	if err == nil {
		t.Fatal("expected an error with no listener")
	}
	var flowErr *FlowError
	if !errors.As(err, &flowErr) || flowErr.Code != FailureDeliveryFailed {
		t.Errorf("expected delivery_failed, got %v", err)
	}
}

func TestChannelBridgeFullBuffer(t *testing.T) {
	bridge := NewChannelBridge()
	bridge.Listen("session-1")

	if err := bridge.Notify("session-1", ResultMessage{Type: ResultMessageType}); err != nil {
		t.Fatalf("first Notify failed: %v", err)
	}

	// Second delivery to an undrained listener must fail, not block.
	err := bridge.Notify("session-1", ResultMessage{Type: ResultMessageType})
	var flowErr *FlowError
	if !errors.As(err, &flowErr) || flowErr.Code != FailureDeliveryFailed {
		t.Errorf("expected delivery_failed, got %v", err)
	}
}

func TestChannelBridgeRelease(t *testing.T) {
	bridge := NewChannelBridge()
	bridge.Listen("session-1")
	bridge.Release("session-1")

	if err := bridge.Notify("session-1", ResultMessage{Type: ResultMessageType}); err == nil {
		t.Error("expected an error after release")
	}

	// Releasing an unknown session is a no-op.
	bridge.Release("never-registered")
}

func TestChannelBridgeListenReplaces(t *testing.T) {
	bridge := NewChannelBridge()
	old := bridge.Listen("session-1")
	fresh := bridge.Listen("session-1")

	if err := bridge.Notify("session-1", ResultMessage{Type: ResultMessageType}); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case <-old:
		t.Error("message delivered to the replaced listener")
	default:
	}
	select {
	case <-fresh:
	default:
		t.Error("message not delivered to the current listener")
	}
}
