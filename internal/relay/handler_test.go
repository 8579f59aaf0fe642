package relay

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var errTokenEndpointDown = errors.New("token endpoint returned 502")

func newHandlerFixture(t *testing.T) (*reconcilerFixture, *Handler, *int32) {
	t.Helper()

	f := newReconcilerFixture(t)
	var released int32
	h := NewHandler(HandlerConfig{
		Reconciler: f.reconciler,
		GraceDelay: 5 * time.Millisecond,
		Release:    func() { atomic.AddInt32(&released, 1) },
	})
	return f, h, &released
}

func waitForRelease(t *testing.T, released *int32) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(released) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("release never ran")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHandlerSuccessPage(t *testing.T) {
	f, h, released := newHandlerFixture(t)
	f.put(t, testEntry("state-1", "session-1", time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=authcode-1&state=state-1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Authentication Successful") {
		t.Errorf("success page missing heading: %s", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}

	waitForRelease(t, released)
}

func TestHandlerErrorPage(t *testing.T) {
	_, h, released := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=authcode-1&state=unknown", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Authentication Failed") {
		t.Errorf("error page missing heading: %s", body)
	}
	if !strings.Contains(body, string(FailureUnknownOrExpiredState)) {
		t.Errorf("error page missing failure code: %s", body)
	}

	// Failed attempts release the surface too.
	waitForRelease(t, released)
}

func TestHandlerEscapesProviderText(t *testing.T) {
	f, h, _ := newHandlerFixture(t)
	f.put(t, testEntry("state-1", "session-1", time.Minute))

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/callback?state=state-1&error=access_denied&error_description="+
			"%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("provider-supplied text rendered unescaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("expected escaped text in page: %s", body)
	}
}

func TestHandlerErrorPageCarriesUnderlyingCause(t *testing.T) {
	f, h, _ := newHandlerFixture(t)
	f.exchangeErr = errTokenEndpointDown
	f.put(t, testEntry("state-1", "session-1", time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=authcode-1&state=state-1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	// The page is the user's only error surface; the wrapped cause must be on
	// it, not just the generic message.
	body := rec.Body.String()
	if !strings.Contains(body, "token exchange failed") {
		t.Errorf("error page missing the failure message: %s", body)
	}
	if !strings.Contains(body, errTokenEndpointDown.Error()) {
		t.Errorf("error page missing the underlying cause: %s", body)
	}
}

func TestHandlerDoubleSubmission(t *testing.T) {
	f, h, _ := newHandlerFixture(t)
	f.put(t, testEntry("state-1", "session-1", time.Minute))

	url := "/oauth/callback?code=authcode-1&state=state-1"

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, url, nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first submission failed with %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, url, nil))
	if second.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on the replayed callback, got %d", second.Code)
	}
	if f.exchangeCalls != 1 {
		t.Errorf("expected exactly one exchange, got %d", f.exchangeCalls)
	}
}

func TestHandlerNoReleaseConfigured(t *testing.T) {
	f := newReconcilerFixture(t)
	h := NewHandler(HandlerConfig{Reconciler: f.reconciler})

	// A long-running endpoint has no release hook; the handler must cope.
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=c&state=unknown", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandlerRespondsBeforeRelease(t *testing.T) {
	f := newReconcilerFixture(t)
	f.put(t, testEntry("state-1", "session-1", time.Minute))

	releaseAt := make(chan time.Time, 1)
	h := NewHandler(HandlerConfig{
		Reconciler: f.reconciler,
		GraceDelay: 20 * time.Millisecond,
		Release:    func() { releaseAt <- time.Now() },
	})

	rec := httptest.NewRecorder()
	start := time.Now()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?code=c&state=state-1", nil))
	responded := time.Now()

	select {
	case released := <-releaseAt:
		if released.Before(responded) {
			t.Error("release ran before the response was written")
		}
		if released.Sub(start) < 20*time.Millisecond {
			t.Error("release ran before the grace delay elapsed")
		}
	case <-time.After(time.Second):
		t.Fatal("release never ran")
	}
}
