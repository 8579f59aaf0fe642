package relay

import (
	"errors"
	"time"
)

// pendingKeyPrefix prefixes every pending-attempt key in the store.
const pendingKeyPrefix = "auth:state:"

// authURLArtifactPrefix prefixes the recorded-authorization-URL artifact key.
const authURLArtifactPrefix = "auth:url:"

// PendingKey derives the storage key for a pending attempt from the OAuth
// state parameter.
func PendingKey(state string) string {
	return pendingKeyPrefix + state
}

// AuthURLArtifactKey derives the storage key under which the attempt's
// authorization URL is recorded. The record is deleted when the attempt
// fails so it cannot be replayed.
func AuthURLArtifactKey(state string) string {
	return authURLArtifactPrefix + state
}

// OutcomeKey derives the storage key for a completed attempt's outcome.
// The namespace isolates multiple client instances sharing a storage domain.
func OutcomeKey(namespace, sessionID string) string {
	return namespace + ":auth_result:" + sessionID
}

// ResumeContext is the minimal data needed to reconstruct the token-exchange
// capability in a context with no prior memory of the attempt. It is
// persisted with the pending entry and consumed together with it.
type ResumeContext struct {
	// Issuer is the authorization server's issuer URL. Used to discover the
	// token endpoint when TokenEndpoint is not set explicitly.
	Issuer string `json:"issuer,omitempty"`

	// TokenEndpoint overrides metadata discovery when set.
	TokenEndpoint string `json:"token_endpoint,omitempty"`

	// ClientID identifies the OAuth client.
	ClientID string `json:"client_id"`

	// RedirectURI is the callback location the code was issued for.
	RedirectURI string `json:"redirect_uri"`

	// Scope is the space-separated requested scope(s).
	Scope string `json:"scope,omitempty"`

	// Namespace is the result-store isolation prefix for this attempt.
	Namespace string `json:"namespace,omitempty"`

	// CodeVerifier is the PKCE code verifier for this flow.
	CodeVerifier string `json:"code_verifier"`
}

// Validate checks that the context carries everything needed to reconstruct
// the exchange capability.
func (rc *ResumeContext) Validate() error {
	if rc.ClientID == "" {
		return errors.New("resume context missing client_id")
	}
	if rc.RedirectURI == "" {
		return errors.New("resume context missing redirect_uri")
	}
	if rc.CodeVerifier == "" {
		return errors.New("resume context missing code_verifier")
	}
	if rc.Issuer == "" && rc.TokenEndpoint == "" {
		return errors.New("resume context missing issuer and token_endpoint")
	}
	return nil
}

// PendingState represents one in-flight authorization attempt.
// At most one entry exists per state value; creating a new attempt with the
// same state overwrites the prior entry (last-writer-wins).
type PendingState struct {
	// State is the OAuth state parameter; the store key is derived from it.
	State string `json:"state"`

	// SessionID addresses the outcome produced on completion. When absent,
	// no outcome can be published for polling and only direct notification
	// can reach the initiator.
	SessionID string `json:"session_id,omitempty"`

	// CreatedAt is when the attempt was created.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the entry stops being valid. An entry at or past
	// this instant is treated identically to "not found".
	ExpiresAt time.Time `json:"expires_at"`

	// Resume reconstructs the token-exchange capability in the callback
	// context.
	Resume ResumeContext `json:"resume"`

	// ArtifactKeys lists secondary store keys tied to this attempt (e.g.
	// the recorded authorization URL). They are removed when the attempt
	// fails.
	ArtifactKeys []string `json:"artifact_keys,omitempty"`
}

// Key returns the storage key for this entry.
func (p *PendingState) Key() string {
	return PendingKey(p.State)
}

// Expired reports whether the entry is invalid at the given instant.
func (p *PendingState) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Outcome is the durable, short-lived record of a completed attempt.
// It is created exactly once by the reconciler and never mutated afterwards.
type Outcome struct {
	// Success reports whether the flow completed with a token.
	Success bool `json:"success"`

	// Error is the human-readable failure reason; present iff !Success.
	Error string `json:"error,omitempty"`

	// Timestamp is when the outcome was recorded.
	Timestamp time.Time `json:"timestamp"`

	// ExpiresAt is when pollers must start treating the record as stale.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether a poller must ignore the record at the given
// instant.
func (o *Outcome) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// ResultMessageType is the type tag on every bridge message.
const ResultMessageType = "authCallbackResult"

// ResultMessage is the fire-and-forget payload delivered over the
// NotificationBridge. No acknowledgment is expected.
type ResultMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
