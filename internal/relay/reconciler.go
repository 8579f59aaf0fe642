package relay

import (
	"context"
	"errors"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"authrelay/pkg/logging"
)

// DefaultOutcomeTTL is how long a published outcome stays valid for pollers.
const DefaultOutcomeTTL = 5 * time.Minute

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	// PendingStore holds the in-flight attempts (required).
	PendingStore PendingStateStore

	// ResultStore receives completed-attempt outcomes (required).
	ResultStore ResultStore

	// Bridge delivers results directly to in-process listeners (optional).
	Bridge NotificationBridge

	// NewExchanger reconstructs the code-exchange capability from a resume
	// context. Defaults to the production NewExchanger.
	NewExchanger ExchangerFactory

	// OutcomeTTL is the validity window of published outcomes.
	// Defaults to DefaultOutcomeTTL.
	OutcomeTTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Reconciler is the callback-side state machine. It parses the redirect
// response, consumes the matching pending entry exactly once, performs the
// code exchange, and publishes a terminal outcome on every path.
type Reconciler struct {
	pending      PendingStateStore
	results      ResultStore
	bridge       NotificationBridge
	newExchanger ExchangerFactory
	outcomeTTL   time.Duration
	now          func() time.Time
}

// NewReconciler creates a reconciler from the given configuration.
func NewReconciler(cfg ReconcilerConfig) (*Reconciler, error) {
	if cfg.PendingStore == nil {
		return nil, errors.New("reconciler requires a pending-state store")
	}
	if cfg.ResultStore == nil {
		return nil, errors.New("reconciler requires a result store")
	}

	r := &Reconciler{
		pending:      cfg.PendingStore,
		results:      cfg.ResultStore,
		bridge:       cfg.Bridge,
		newExchanger: cfg.NewExchanger,
		outcomeTTL:   cfg.OutcomeTTL,
		now:          cfg.Now,
	}
	if r.newExchanger == nil {
		r.newExchanger = NewExchanger
	}
	if r.outcomeTTL <= 0 {
		r.outcomeTTL = DefaultOutcomeTTL
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Completion is the terminal result of one reconciliation.
type Completion struct {
	// Outcome is the record that was (or would have been) published.
	Outcome *Outcome

	// Failure is nil iff the attempt succeeded.
	Failure *FlowError

	// SessionID is the attempt's session id when one could be resolved.
	SessionID string

	// Token carries the exchanged token on success. Persisting it is the
	// embedding application's concern.
	Token *oauth2.Token
}

// Reconcile runs the state machine over the redirect's query parameters.
// It never returns an error: every failure is converted into a failed
// Completion, published where possible, and surfaced to the caller for
// rendering. There is no retry within a single invocation; a failed attempt
// requires a fresh one with a fresh state value.
func (r *Reconciler) Reconcile(ctx context.Context, query url.Values) *Completion {
	code := query.Get("code")
	state := query.Get("state")
	errParam := query.Get("error")
	errDesc := query.Get("error_description")

	// The entry is taken at most once per invocation, whichever path gets
	// there first. Failure paths still take it so the session id is known
	// and the attempt cannot be replayed.
	var entry *PendingState
	takeEntry := func() {
		if entry != nil || state == "" {
			return
		}
		taken, ok, err := r.pending.Take(state)
		if err != nil {
			logging.Warn("Relay", "Failed to consume pending entry: %v", err)
			return
		}
		if ok {
			entry = taken
		}
	}

	// Parsing
	if errParam != "" {
		logging.Warn("Relay", "Callback carried provider error: %s - %s", errParam, errDesc)
		takeEntry()
		return r.complete(entry, nil, deniedError(errParam, errDesc))
	}
	if code == "" {
		takeEntry()
		return r.complete(entry, nil, newFlowError(FailureMissingCode, "callback missing authorization code"))
	}
	if state == "" {
		return r.complete(nil, nil, newFlowError(FailureMissingState, "callback missing state parameter"))
	}

	// Validated
	takeEntry()
	if entry == nil {
		logging.Warn("Relay", "Callback with unknown or already-consumed state")
		return r.complete(nil, nil,
			newFlowError(FailureUnknownOrExpiredState, "authorization attempt is unknown, expired, or already completed"))
	}
	if entry.Expired(r.now()) {
		logging.Warn("Relay", "Callback for expired attempt session=%s", logging.TruncateSessionID(entry.SessionID))
		return r.complete(entry, nil, newFlowError(FailureExpiredState, "authorization attempt expired"))
	}
	if err := entry.Resume.Validate(); err != nil {
		return r.complete(entry, nil,
			wrapFlowError(FailureIncompleteResumeContext, "stored attempt cannot be resumed", err))
	}

	// Exchanging. The capability is rebuilt from the durable record alone:
	// this context may have no memory of the initiator's process state.
	exchanger := r.newExchanger(entry.Resume)
	token, err := exchanger.Exchange(ctx, code)
	if err != nil {
		logging.Error("Exchange", err, "Failed to exchange authorization code")
		return r.complete(entry, nil, wrapFlowError(FailureExchangeFailed, "token exchange failed", err))
	}

	logging.Info("Relay", "Completed authorization for session=%s", logging.TruncateSessionID(entry.SessionID))
	return r.complete(entry, token, nil)
}

// complete builds the terminal outcome, publishes it when a session id is
// known, attempts best-effort direct delivery, and cleans up failed
// attempts' artifacts. It runs on every exit path of Reconcile.
func (r *Reconciler) complete(entry *PendingState, token *oauth2.Token, failure *FlowError) *Completion {
	now := r.now()
	outcome := &Outcome{
		Success:   failure == nil,
		Timestamp: now,
		ExpiresAt: now.Add(r.outcomeTTL),
	}
	if failure != nil {
		outcome.Error = failure.Error()
	}

	var sessionID string
	if entry != nil {
		sessionID = entry.SessionID
	}

	if sessionID != "" {
		// The outcome goes into the namespace the initiator recorded in the
		// entry, not any namespace this process was configured with. The two
		// sides may be separate processes with separate configurations.
		if err := r.results.Publish(entry.Resume.Namespace, sessionID, outcome); err != nil {
			// The poller will time out; the direct channel may still land.
			logging.Warn("Relay", "Failed to publish outcome for session=%s: %v",
				logging.TruncateSessionID(sessionID), err)
		}
	} else {
		logging.Debug("Relay", "No session id for attempt; skipping outcome publication")
	}

	if r.bridge != nil && sessionID != "" {
		msg := ResultMessage{Type: ResultMessageType, Success: outcome.Success, Error: outcome.Error}
		if err := r.bridge.Notify(sessionID, msg); err != nil {
			logging.Debug("Bridge", "Direct delivery failed for session=%s: %v",
				logging.TruncateSessionID(sessionID), err)
		}
	}

	// A failed attempt must not leave replayable residue: the verifier died
	// with the consumed entry, and the recorded authorization URL goes here.
	if failure != nil && entry != nil {
		for _, key := range entry.ArtifactKeys {
			if err := r.pending.DeleteArtifact(key); err != nil {
				logging.Debug("Store", "Failed to remove artifact %s: %v", key, err)
			}
		}
	}

	return &Completion{
		Outcome:   outcome,
		Failure:   failure,
		SessionID: sessionID,
		Token:     token,
	}
}
