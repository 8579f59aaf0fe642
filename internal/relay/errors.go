package relay

import "fmt"

// FailureCode classifies why an attempt reached its failure state.
// All codes except FailureDeliveryFailed are terminal for the attempt; the
// only recovery path is a fresh attempt with a fresh state value.
type FailureCode string

const (
	// FailureAuthorizationDenied means the provider returned an error in the
	// redirect (e.g. the user declined consent).
	FailureAuthorizationDenied FailureCode = "authorization_denied"

	// FailureMissingCode means the redirect carried no authorization code.
	FailureMissingCode FailureCode = "missing_code"

	// FailureMissingState means the redirect carried no state parameter.
	FailureMissingState FailureCode = "missing_state"

	// FailureUnknownOrExpiredState means no pending entry matched the state.
	// This covers "never existed" as well as "already consumed", which is
	// what makes the consuming Take a replay defense.
	FailureUnknownOrExpiredState FailureCode = "unknown_or_expired_state"

	// FailureExpiredState means a matching entry existed but its expiry had
	// passed. The entry has already been removed when this is reported.
	FailureExpiredState FailureCode = "expired_state"

	// FailureIncompleteResumeContext means the stored resume context lacks a
	// field required to reconstruct the exchange capability.
	FailureIncompleteResumeContext FailureCode = "incomplete_resume_context"

	// FailureExchangeFailed wraps any error from the code-exchange
	// capability.
	FailureExchangeFailed FailureCode = "exchange_failed"

	// FailureDeliveryFailed marks a best-effort bridge delivery that did not
	// reach a listener. Always swallowed at the point of use.
	FailureDeliveryFailed FailureCode = "delivery_failed"
)

// FlowError is a classified failure of a single authorization attempt.
type FlowError struct {
	Code    FailureCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain inspection.
func (e *FlowError) Unwrap() error {
	return e.Err
}

func newFlowError(code FailureCode, message string) *FlowError {
	return &FlowError{Code: code, Message: message}
}

func wrapFlowError(code FailureCode, message string, err error) *FlowError {
	return &FlowError{Code: code, Message: message, Err: err}
}

// deniedError formats the provider-supplied error from the redirect.
func deniedError(errCode, description string) *FlowError {
	msg := fmt.Sprintf("OAuth error: %s", errCode)
	if description != "" {
		msg = fmt.Sprintf("OAuth error: %s - %s", errCode, description)
	}
	return newFlowError(FailureAuthorizationDenied, msg)
}
