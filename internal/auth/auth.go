package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rmoreira/hearing-sync/internal/logger"
	"github.com/rmoreira/hearing-sync/internal/token"
)

// State identifies a position in the login state machine.
type State string

const (
	StateCheckCache    State = "CHECK_CACHE"
	StateReuse         State = "REUSE"
	StateLoginPending  State = "LOGIN_PENDING"
	StateAuthenticated State = "AUTHENTICATED"
	StateTimedOut      State = "TIMED_OUT"
)

// Outcome summarizes how a system's session was obtained.
type Outcome string

const (
	OutcomeReusedCache Outcome = "reused-cache"
	OutcomeFreshLogin  Outcome = "fresh-login"
	OutcomeTimedOut    Outcome = "timed-out"
)

// ErrLoginTimeout is returned when the human did not complete the login
// within the configured window.
var ErrLoginTimeout = errors.New("timed out waiting for interactive login")

const (
	DefaultTimeout      = 300 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// Browser is the human-operable browser context used during interactive
// login. Implementations live outside this package.
type Browser interface {
	Navigate(url string) error
	CurrentURL() (string, error)
	Cookies() ([]token.Cookie, error)
	Close() error
}

// Completion decides whether the observed browser state indicates the login
// finished.
type Completion func(currentURL string, cookieCount int) bool

// DefaultCompletion reports login as finished once the browser has left the
// login/openid/auth pages and holds at least one cookie.
func DefaultCompletion(currentURL string, cookieCount int) bool {
	u := strings.ToLower(currentURL)
	if strings.Contains(u, "login") || strings.Contains(u, "openid") || strings.Contains(u, "auth") {
		return false
	}
	return cookieCount > 0
}

// Options tune an Authenticator. Zero values pick the defaults.
type Options struct {
	Timeout      time.Duration // max wait for the human to finish logging in
	PollInterval time.Duration // delay between browser polls
	TokenTTL     time.Duration // validity window of captured tokens
	Complete     Completion
	Now          func() time.Time
	Sleep        func(ctx context.Context, d time.Duration) error
	Log          *logger.Logger
}

// Result reports a finished authentication for one system.
type Result struct {
	Token   token.Token
	Outcome Outcome
	State   State
}

// Authenticator obtains a validated session for one court system, reusing
// the token cache when possible and falling back to an interactive login.
type Authenticator struct {
	cache      token.Cache
	newBrowser func() (Browser, error)

	// probe validates a cached token against the live system. Optional; a nil
	// probe trusts the cache's expiry alone.
	probe func(ctx context.Context, tok token.Token) bool

	timeout  time.Duration
	interval time.Duration
	ttl      time.Duration
	complete Completion
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	log      *logger.Logger
}

// New creates an Authenticator backed by the given cache and browser factory.
func New(cache token.Cache, newBrowser func() (Browser, error), opts Options) *Authenticator {
	a := &Authenticator{
		cache:      cache,
		newBrowser: newBrowser,
		timeout:    opts.Timeout,
		interval:   opts.PollInterval,
		ttl:        opts.TokenTTL,
		complete:   opts.Complete,
		now:        opts.Now,
		sleep:      opts.Sleep,
		log:        opts.Log,
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.interval <= 0 {
		a.interval = DefaultPollInterval
	}
	if a.ttl <= 0 {
		a.ttl = token.DefaultTTL
	}
	if a.complete == nil {
		a.complete = DefaultCompletion
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.sleep == nil {
		a.sleep = realSleep
	}
	if a.log == nil {
		a.log = logger.Default()
	}
	return a
}

// WithProbe sets a live-session validation check run against cached tokens
// before they are reused. A failing probe invalidates the cache entry and
// forces a fresh interactive login.
func (a *Authenticator) WithProbe(probe func(ctx context.Context, tok token.Token) bool) *Authenticator {
	a.probe = probe
	return a
}

func realSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Authenticate runs the state machine for one system and returns a validated
// session token. The returned Result carries the terminal state even on
// failure, so callers can report timed-out systems distinctly.
func (a *Authenticator) Authenticate(ctx context.Context, systemID, loginURL string) (Result, error) {
	// CHECK_CACHE
	if tok, ok := a.cache.Load(systemID); ok {
		if a.probe == nil || a.probe(ctx, tok) {
			a.log.Info("Reusing cached session", logger.Fields{
				"system":  systemID,
				"cookies": len(tok.Cookies),
			})
			return Result{Token: tok, Outcome: OutcomeReusedCache, State: StateReuse}, nil
		}
		a.log.Warn("Cached session rejected by portal, forcing fresh login", logger.Fields{
			"system": systemID,
		})
		if err := a.cache.Invalidate(systemID); err != nil {
			return Result{State: StateCheckCache}, fmt.Errorf("invalidating rejected token for %s: %w", systemID, err)
		}
	}

	// LOGIN_PENDING
	tok, err := a.interactiveLogin(ctx, systemID, loginURL)
	if err != nil {
		if errors.Is(err, ErrLoginTimeout) {
			return Result{Outcome: OutcomeTimedOut, State: StateTimedOut}, err
		}
		return Result{State: StateLoginPending}, err
	}

	if err := a.cache.Store(systemID, tok); err != nil {
		return Result{State: StateLoginPending}, fmt.Errorf("storing session token for %s: %w", systemID, err)
	}

	a.log.Info("Interactive login completed", logger.Fields{
		"system":  systemID,
		"cookies": len(tok.Cookies),
	})
	return Result{Token: tok, Outcome: OutcomeFreshLogin, State: StateAuthenticated}, nil
}

// interactiveLogin opens the login page and polls the browser until the
// completion predicate fires or the timeout elapses.
func (a *Authenticator) interactiveLogin(ctx context.Context, systemID, loginURL string) (token.Token, error) {
	browser, err := a.newBrowser()
	if err != nil {
		return token.Token{}, fmt.Errorf("starting browser for %s: %w", systemID, err)
	}
	defer browser.Close()

	if err := browser.Navigate(loginURL); err != nil {
		return token.Token{}, fmt.Errorf("opening login page for %s: %w", systemID, err)
	}

	a.log.Info("Waiting for interactive login", logger.Fields{
		"system":      systemID,
		"login_url":   loginURL,
		"timeout_sec": int(a.timeout.Seconds()),
	})

	deadline := a.now().Add(a.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return token.Token{}, err
		}

		currentURL, err := browser.CurrentURL()
		if err != nil {
			return token.Token{}, fmt.Errorf("reading browser state for %s: %w", systemID, err)
		}
		cookies, err := browser.Cookies()
		if err != nil {
			return token.Token{}, fmt.Errorf("reading browser cookies for %s: %w", systemID, err)
		}

		if a.complete(currentURL, len(cookies)) {
			return token.New(systemID, cookies, a.now(), a.ttl), nil
		}

		if !a.now().Add(a.interval).Before(deadline) {
			return token.Token{}, fmt.Errorf("%w: %s after %s", ErrLoginTimeout, systemID, a.timeout)
		}
		if err := a.sleep(ctx, a.interval); err != nil {
			return token.Token{}, err
		}
	}
}
