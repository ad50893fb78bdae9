// Package token manages cached session credentials for the court portals.
//
// A Token holds the opaque cookie bundle captured after an interactive login
// together with its acquisition and expiry timestamps. Tokens are valid
// strictly before their expiry instant. The FileCache persists tokens in one
// human-readable JSON file keyed by system, written atomically (temp file and
// rename) so a crash mid-write never corrupts the store. Corrupt or expired
// entries are treated as cache misses, never as errors; the caller falls back
// to interactive authentication.
package token
