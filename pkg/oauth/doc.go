// Package oauth provides shared OAuth 2.1 helpers used by both halves of the
// authrelay flow.
//
// This package contains the pieces that are independent of where the flow
// runs: PKCE generation (RFC 7636), state-parameter generation, and opening
// the system browser for the authorization request.
//
// The initiator side (internal/relay.Initiator) uses GeneratePKCE and
// GenerateState when creating a pending attempt; the callback side never
// generates anything here, it only consumes the values that were persisted
// with the attempt.
package oauth
