package relay

import (
	"fmt"
	"html"
	"net/http"
	"time"
)

// DefaultGraceDelay is how long the handler waits after answering a callback
// before releasing its execution surface, so the durable outcome write and
// the response flush are not cut short.
const DefaultGraceDelay = 100 * time.Millisecond

// HandlerConfig configures the callback HTTP handler.
type HandlerConfig struct {
	// Reconciler processes the callbacks (required).
	Reconciler *Reconciler

	// GraceDelay is the pause before Release runs.
	// Defaults to DefaultGraceDelay.
	GraceDelay time.Duration

	// Release tears down the callback surface after a flow completes
	// (e.g. stops a one-shot loopback server). Optional; a long-running
	// callback endpoint leaves it nil.
	Release func()
}

// Handler is the HTTP surface for the OAuth callback endpoint. It may be the
// only surface the user ever sees for a failed attempt, so failures render a
// human-readable page rather than a bare status code.
type Handler struct {
	reconciler *Reconciler
	graceDelay time.Duration
	release    func()
}

// NewHandler creates a callback handler from the given configuration.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		reconciler: cfg.Reconciler,
		graceDelay: cfg.GraceDelay,
		release:    cfg.Release,
	}
	if h.graceDelay <= 0 {
		h.graceDelay = DefaultGraceDelay
	}
	return h
}

// HandleCallback handles the OAuth callback endpoint.
// This is called by the browser after the user authenticates with the IdP.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	completion := h.reconciler.Reconcile(r.Context(), r.URL.Query())

	if completion.Failure != nil {
		h.renderErrorPage(w, completion.Failure)
	} else {
		h.renderSuccessPage(w)
	}

	h.scheduleRelease()
}

// ServeHTTP implements http.Handler for the callback handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.HandleCallback(w, r)
}

// scheduleRelease tears down the callback surface after the grace delay.
// Both terminal states release: the flow is over either way.
func (h *Handler) scheduleRelease() {
	if h.release == nil {
		return
	}
	go func() {
		time.Sleep(h.graceDelay)
		h.release()
	}()
}

// setSecurityHeaders sets recommended security headers for HTML responses.
// These headers help prevent XSS, clickjacking, and MIME sniffing attacks.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

const pageStyle = `
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 50%, #0f3460 100%);
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            color: #e8e8e8;
        }
        .container {
            text-align: center;
            padding: 3rem;
            background: rgba(255, 255, 255, 0.05);
            border-radius: 16px;
            border: 1px solid rgba(255, 255, 255, 0.1);
            max-width: 500px;
            margin: 1rem;
        }
        .badge {
            width: 80px;
            height: 80px;
            margin: 0 auto 1.5rem;
            border-radius: 50%;
            display: flex;
            align-items: center;
            justify-content: center;
            font-size: 2.5rem;
        }
        .badge.ok { background: linear-gradient(135deg, #00d4aa 0%, #00a896 100%); }
        .badge.err { background: linear-gradient(135deg, #ff6b6b 0%, #ee5a5a 100%); }
        h1 { font-size: 1.75rem; font-weight: 600; margin-bottom: 0.5rem; color: #fff; }
        .message { color: #ff6b6b; font-weight: 500; margin-top: 1rem; }
        p { color: #a0a0a0; line-height: 1.6; margin-top: 1rem; }`

// renderSuccessPage renders an HTML page indicating successful authentication.
func (h *Handler) renderSuccessPage(w http.ResponseWriter) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	htmlContent := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authentication Successful</title>
    <style>%s</style>
</head>
<body>
    <div class="container">
        <div class="badge ok">&#10003;</div>
        <h1>Authentication Successful</h1>
        <p>You can close this window and return to the application.</p>
    </div>
</body>
</html>`, pageStyle)

	w.Write([]byte(htmlContent))
}

// renderErrorPage renders an HTML page indicating a failed attempt.
// This page may be the only error surface the user gets, so it carries the
// full human-readable reason.
func (h *Handler) renderErrorPage(w http.ResponseWriter, failure *FlowError) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)

	// The full error chain, underlying cause included, goes on the page.
	// Escape to prevent XSS: it may embed provider-supplied text.
	safeMessage := html.EscapeString(failure.Error())
	safeCode := html.EscapeString(string(failure.Code))

	htmlContent := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authentication Failed</title>
    <style>%s</style>
</head>
<body>
    <div class="container">
        <div class="badge err">&#10005;</div>
        <h1>Authentication Failed</h1>
        <p class="message">%s</p>
        <p>Error code: %s</p>
        <p>Please return to the application and start a new sign-in.</p>
    </div>
</body>
</html>`, pageStyle, safeMessage, safeCode)

	w.Write([]byte(htmlContent))
}
