// Package auth drives the human-assisted login flow for one court system.
//
// The flow is a small state machine: CHECK_CACHE short-circuits to REUSE when
// the token cache holds a valid session; otherwise LOGIN_PENDING directs a
// browser at the portal's login page and polls its navigation state until a
// completion predicate reports the human finished logging in (including any
// second authentication factor), or a bounded timeout elapses. Success
// captures the session cookies, stores them in the cache, and ends in
// AUTHENTICATED; a timeout ends in TIMED_OUT and is not retried within the
// same run, since re-running a human-paced action is not idempotent the way a
// network call is.
//
// The browser itself is an external collaborator consumed through the Browser
// interface; the clock, poll interval, and completion predicate are
// injectable, so tests run the whole machine against a fake driver without
// real time passing.
package auth
