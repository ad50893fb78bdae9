package token

import "time"

// DefaultTTL is the validity window applied to freshly captured tokens.
const DefaultTTL = 24 * time.Hour

// Cookie is one browser cookie captured from an authenticated session.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Token is the session artifact for one court system.
type Token struct {
	SystemID   string    `json:"system_id"`
	Cookies    []Cookie  `json:"cookies"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// New creates a token acquired now with the given validity window.
func New(systemID string, cookies []Cookie, now time.Time, ttl time.Duration) Token {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Token{
		SystemID:   systemID,
		Cookies:    cookies,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
}

// ValidAt reports whether the token is still usable at the given instant.
// Validity is strict: a token expiring exactly now is already invalid.
func (t Token) ValidAt(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}
