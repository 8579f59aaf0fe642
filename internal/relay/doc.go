// Package relay reconciles browser-based OAuth 2.0 authorization-code flows
// that start in one execution context and finish in another.
//
// The initiator creates a pending attempt before redirecting the user to the
// authorization server; the callback context, which may be a different
// process with no memory of the attempt, validates the redirect, consumes the
// pending record exactly once, performs the code exchange, and publishes the
// result where the initiator can find it. The two contexts share nothing but
// the durable stores.
//
// # Components
//
//   - PendingStateStore: durable keyed storage of in-flight attempts with
//     expiry. Take is the single serialization point: it behaves as an atomic
//     read-and-delete, so at most one caller ever observes a given attempt.
//   - ResultStore: durable keyed storage of completed-flow outcomes, written
//     by the callback context and polled by the initiator.
//   - Reconciler: the callback state machine (parse, validate, exchange,
//     publish) with a terminal outcome on every path.
//   - NotificationBridge: best-effort direct delivery of results to an
//     in-process listener. Only ever an accelerant next to the ResultStore,
//     never the sole delivery path.
//   - Initiator / Attempt: creates pending attempts and waits for their
//     outcome by polling the ResultStore.
//   - Handler: the HTTP surface for the callback endpoint, including the
//     fallback success/failure pages.
//
// # Flow
//
//  1. Initiator.Begin persists a PendingState (state parameter as key, PKCE
//     verifier and client identity as resume context) and returns the
//     authorization URL plus an Attempt handle.
//  2. The browser returns to the callback endpoint with code and state (or an
//     error). Reconciler.Reconcile takes the pending entry, reconstructs the
//     token-exchange capability from the resume context alone, and exchanges
//     the code.
//  3. The outcome (success or failure, 5 minute validity) is published to the
//     ResultStore under the attempt's session id and, best effort, pushed
//     over the NotificationBridge.
//  4. Attempt.Wait observes the outcome via polling or the bridge and returns
//     it to the caller.
//
// # Storage keys
//
// Pending attempts are keyed "auth:state:<state-value>"; outcomes are keyed
// "<namespace>:auth_result:<sessionID>" where the namespace isolates multiple
// client instances sharing a storage domain.
//
// # Failure model
//
// Every validation or exchange failure is terminal for the attempt and maps
// to a FlowError code (AuthorizationDenied, MissingCode, MissingState,
// UnknownOrExpiredState, ExpiredState, IncompleteResumeContext,
// ExchangeFailed). Nothing is retried; recovery is a fresh attempt with a
// fresh state value. Delivery failures on the bridge are always swallowed.
//
// Token persistence is out of scope: the exchanged token is handed to the
// embedding application through the Completion and is not stored here.
package relay
