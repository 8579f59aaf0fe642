package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"authrelay/pkg/logging"
)

// CallbackServer hosts the callback Handler on a local HTTP listener. It can
// run one-shot (the handler's release hook stops it after the first completed
// flow) or long-running (release hook left unset, Stop called by the owner).
type CallbackServer struct {
	addr    string
	path    string
	handler *Handler

	server   *http.Server
	listener net.Listener
	errorCh  chan error
	stopOnce sync.Once
	baseURL  string
}

// NewCallbackServer creates a callback server for the given bind address and
// endpoint path.
func NewCallbackServer(addr, path string, handler *Handler) *CallbackServer {
	return &CallbackServer{
		addr:    addr,
		path:    path,
		handler: handler,
		errorCh: make(chan error, 1),
	}
}

// Start binds the listener and begins serving. The server stops when the
// context is cancelled or Stop is called. Returns the full callback URL.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", s.addr, err)
	}
	s.listener = listener

	// Keep the configured hostname in the URL: the redirect URI registered
	// with the provider names it, not the resolved address. Only the port is
	// taken from the listener, so ":0" binds still yield a usable URL.
	host, _, err := net.SplitHostPort(s.addr)
	if err != nil || host == "" {
		host = "localhost"
	}
	port := listener.Addr().(*net.TCPAddr).Port
	s.baseURL = fmt.Sprintf("http://%s:%d", host, port)

	mux := http.NewServeMux()
	mux.Handle(s.path, s.handler)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logging.Info("Callback", "Callback server listening on %s%s", s.baseURL, s.path)
	return s.baseURL + s.path, nil
}

// Addr returns the bound listen address. Useful when the configured port
// was 0.
func (s *CallbackServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Err returns a channel carrying a fatal serve error, if one occurred.
func (s *CallbackServer) Err() <-chan error {
	return s.errorCh
}

// Stop shuts the server down gracefully. Safe to call more than once and
// from the handler's release hook.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			logging.Debug("Callback", "Callback server shutdown: %v", err)
		}
	})
}
