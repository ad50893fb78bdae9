// Package court provides the authenticated client for the PJe court portals.
//
// Each portal (TRT2, TRT15) exposes the shared PJe schedule API for external
// users. The client primes its cookie jar from a cached session token, builds
// the schedule queries, decodes the response envelope into hearing records,
// and probes the portal to check whether a cached session is still accepted.
// Fetches are retried with exponential backoff; an explicit rejection (401 or
// 403) is surfaced as ErrUnauthorized and never retried, so the caller can
// invalidate the cached token and fall back to interactive login.
package court
