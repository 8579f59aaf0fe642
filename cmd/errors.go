package cmd

import "fmt"

// AuthFailedError indicates the OAuth flow reached a failure outcome.
type AuthFailedError struct {
	// Issuer is the authorization server the flow targeted.
	Issuer string
	// Reason is the human-readable failure reason from the outcome.
	Reason string
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`Authentication failed for %s: %s

To retry, run:
  authrelay login --issuer %s`, e.Issuer, e.Reason, e.Issuer)
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}

// FlowTimeoutError indicates no outcome arrived before the wait deadline.
type FlowTimeoutError struct {
	// Issuer is the authorization server the flow targeted.
	Issuer string
}

// Error returns a user-friendly error message with actionable guidance.
func (e *FlowTimeoutError) Error() string {
	return fmt.Sprintf(`Timed out waiting for authentication with %s.

The browser flow may still be open. Complete it and run 'authrelay status',
or start over with:
  authrelay login --issuer %s`, e.Issuer, e.Issuer)
}

// Is allows errors.Is() to work with wrapped errors.
func (e *FlowTimeoutError) Is(target error) bool {
	_, ok := target.(*FlowTimeoutError)
	return ok
}
