package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"authrelay/pkg/logging"
	pkgoauth "authrelay/pkg/oauth"
)

const (
	// DefaultPendingTTL is how long a pending attempt stays consumable.
	DefaultPendingTTL = 10 * time.Minute

	// DefaultPollInterval is how often the waiter polls the result store.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultWaitTimeout bounds the waiter's whole polling loop.
	DefaultWaitTimeout = 2 * time.Minute
)

// ErrWaitTimeout is returned when no outcome arrived within the waiter's
// timeout. The pending entry is not retracted; it expires on its own
// schedule, and a late outcome is simply never read.
var ErrWaitTimeout = errors.New("timed out waiting for authentication result")

// InitiatorConfig configures an Initiator.
type InitiatorConfig struct {
	// PendingStore holds the attempts this initiator creates (required).
	PendingStore PendingStateStore

	// ResultStore is polled for outcomes (required).
	ResultStore ResultStore

	// Bridge, when set, registers a direct-delivery listener per attempt as
	// an accelerant next to polling.
	Bridge *ChannelBridge

	// Namespace is recorded in each attempt's resume context so the
	// callback context publishes into the right result-store namespace.
	Namespace string

	// PendingTTL, PollInterval and WaitTimeout default to the package
	// defaults when zero.
	PendingTTL   time.Duration
	PollInterval time.Duration
	WaitTimeout  time.Duration

	// HTTPClient is used for metadata discovery. Defaults to a client with
	// DefaultHTTPTimeout.
	HTTPClient *http.Client

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Initiator creates pending authorization attempts and hands out Attempt
// handles for waiting on their outcome.
type Initiator struct {
	pending      PendingStateStore
	results      ResultStore
	bridge       *ChannelBridge
	namespace    string
	pendingTTL   time.Duration
	pollInterval time.Duration
	waitTimeout  time.Duration
	httpClient   *http.Client
	now          func() time.Time
}

// NewInitiator creates an initiator from the given configuration.
func NewInitiator(cfg InitiatorConfig) (*Initiator, error) {
	if cfg.PendingStore == nil {
		return nil, errors.New("initiator requires a pending-state store")
	}
	if cfg.ResultStore == nil {
		return nil, errors.New("initiator requires a result store")
	}

	i := &Initiator{
		pending:      cfg.PendingStore,
		results:      cfg.ResultStore,
		bridge:       cfg.Bridge,
		namespace:    cfg.Namespace,
		pendingTTL:   cfg.PendingTTL,
		pollInterval: cfg.PollInterval,
		waitTimeout:  cfg.WaitTimeout,
		httpClient:   cfg.HTTPClient,
		now:          cfg.Now,
	}
	if i.pendingTTL <= 0 {
		i.pendingTTL = DefaultPendingTTL
	}
	if i.pollInterval <= 0 {
		i.pollInterval = DefaultPollInterval
	}
	if i.waitTimeout <= 0 {
		i.waitTimeout = DefaultWaitTimeout
	}
	if i.httpClient == nil {
		i.httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i, nil
}

// BeginRequest describes the attempt to create.
type BeginRequest struct {
	// Issuer is the authorization server. Endpoints are discovered from its
	// well-known metadata unless given explicitly below.
	Issuer string

	// AuthEndpoint and TokenEndpoint override discovery.
	AuthEndpoint  string
	TokenEndpoint string

	// ClientID identifies the OAuth client (required).
	ClientID string

	// RedirectURI is the callback location (required).
	RedirectURI string

	// Scope is the space-separated scope(s) to request.
	Scope string
}

// Attempt is the initiator-side handle for one in-flight authorization.
type Attempt struct {
	// AuthURL is the authorization URL to send the user to.
	AuthURL string

	// State is the attempt's state parameter.
	State string

	// SessionID addresses the attempt's outcome in the result store.
	SessionID string

	initiator *Initiator
	direct    <-chan ResultMessage
}

// Begin creates a pending attempt: it generates the state parameter, the
// PKCE pair and a session id, persists the pending entry and the
// authorization-URL artifact, and registers a bridge listener when a bridge
// is configured. The returned attempt is ready for the redirect.
func (i *Initiator) Begin(ctx context.Context, req BeginRequest) (*Attempt, error) {
	if req.ClientID == "" {
		return nil, errors.New("begin requires a client id")
	}
	if req.RedirectURI == "" {
		return nil, errors.New("begin requires a redirect URI")
	}

	authEndpoint := req.AuthEndpoint
	tokenEndpoint := req.TokenEndpoint
	if authEndpoint == "" {
		if req.Issuer == "" {
			return nil, errors.New("begin requires an issuer or explicit endpoints")
		}
		md, err := discoverMetadata(ctx, i.httpClient, req.Issuer)
		if err != nil {
			return nil, err
		}
		authEndpoint = md.AuthorizationEndpoint
		if tokenEndpoint == "" {
			tokenEndpoint = md.TokenEndpoint
		}
	}
	if authEndpoint == "" {
		return nil, fmt.Errorf("no authorization endpoint for issuer %s", req.Issuer)
	}
	// An attempt without an issuer or token endpoint could never complete the
	// code exchange; refuse it here rather than persist a doomed entry.
	if req.Issuer == "" && tokenEndpoint == "" {
		return nil, errors.New("begin requires an issuer or a token endpoint for the code exchange")
	}

	state, err := pkgoauth.GenerateState()
	if err != nil {
		return nil, err
	}
	pkce, err := pkgoauth.GeneratePKCE()
	if err != nil {
		return nil, err
	}
	sessionID := uuid.NewString()

	oauthCfg := oauth2.Config{
		ClientID:    req.ClientID,
		RedirectURL: req.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authEndpoint,
			TokenURL: tokenEndpoint,
		},
	}
	if req.Scope != "" {
		oauthCfg.Scopes = strings.Fields(req.Scope)
	}

	authURL := oauthCfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pkce.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.CodeChallengeMethod),
	)

	now := i.now()
	entry := &PendingState{
		State:     state,
		SessionID: sessionID,
		CreatedAt: now,
		ExpiresAt: now.Add(i.pendingTTL),
		Resume: ResumeContext{
			Issuer:        req.Issuer,
			TokenEndpoint: tokenEndpoint,
			ClientID:      req.ClientID,
			RedirectURI:   req.RedirectURI,
			Scope:         req.Scope,
			Namespace:     i.namespace,
			CodeVerifier:  pkce.CodeVerifier,
		},
		ArtifactKeys: []string{AuthURLArtifactKey(state)},
	}

	// The pending entry must be durable before the user is redirected.
	if err := i.pending.Put(entry); err != nil {
		return nil, fmt.Errorf("failed to persist pending attempt: %w", err)
	}
	if err := i.pending.PutArtifact(AuthURLArtifactKey(state), authURL, entry.ExpiresAt); err != nil {
		logging.Warn("Store", "Failed to record authorization URL: %v", err)
	}

	attempt := &Attempt{
		AuthURL:   authURL,
		State:     state,
		SessionID: sessionID,
		initiator: i,
	}
	if i.bridge != nil {
		attempt.direct = i.bridge.Listen(sessionID)
	}

	logging.Info("Relay", "Created authorization attempt session=%s", logging.TruncateSessionID(sessionID))
	return attempt, nil
}

// Wait blocks until the attempt's outcome is observed, the configured wait
// timeout passes, or ctx is cancelled. Abandoning the wait never retracts
// the pending entry; a late outcome simply goes unread until it is
// garbage-collected.
//
// Delivery is dual-channel: the result store is polled on a fixed interval
// (the path of record), the bridge listener short-circuits the next poll,
// and directory-backed stores additionally get a filesystem-watch poke.
// The observed outcome is deleted from the store before returning.
func (a *Attempt) Wait(ctx context.Context) (*Outcome, error) {
	i := a.initiator

	ctx, cancel := context.WithTimeout(ctx, i.waitTimeout)
	defer cancel()

	if i.bridge != nil {
		defer i.bridge.Release(a.SessionID)
	}

	// Best-effort watch on directory-backed result stores. Any failure here
	// degrades to pure interval polling.
	var watchEvents chan fsnotify.Event
	if dirStore, ok := i.results.(interface{ Dir() string }); ok {
		if watcher, err := fsnotify.NewWatcher(); err == nil {
			if err := watcher.Add(dirStore.Dir()); err == nil {
				watchEvents = watcher.Events
				defer watcher.Close()
			} else {
				watcher.Close()
				logging.Debug("Relay", "Result directory watch unavailable: %v", err)
			}
		}
	}

	ticker := time.NewTicker(i.pollInterval)
	defer ticker.Stop()

	for {
		outcome, ok, err := i.results.Poll(i.namespace, a.SessionID)
		if err != nil {
			logging.Debug("Store", "Outcome poll failed: %v", err)
		}
		if ok {
			// Consumed: the record is ours to remove.
			_ = i.results.Delete(i.namespace, a.SessionID)
			return outcome, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrWaitTimeout
			}
			return nil, ctx.Err()
		case msg := <-a.direct:
			// Direct delivery carries the whole result; prefer the durable
			// record when it is already visible.
			if outcome, ok, _ := i.results.Poll(i.namespace, a.SessionID); ok {
				_ = i.results.Delete(i.namespace, a.SessionID)
				return outcome, nil
			}
			now := i.now()
			return &Outcome{
				Success:   msg.Success,
				Error:     msg.Error,
				Timestamp: now,
				ExpiresAt: now.Add(DefaultOutcomeTTL),
			}, nil
		case <-ticker.C:
		case <-watchEvents:
		}
	}
}
