package token

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rmoreira/hearing-sync/internal/crypto"
)

func testClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestTokenValidity(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("expiry boundary is strict", func(t *testing.T) {
		tok := Token{ExpiresAt: now}
		if tok.ValidAt(now) {
			t.Error("token expiring exactly now must be invalid")
		}
	})

	t.Run("one second of validity is enough", func(t *testing.T) {
		tok := Token{ExpiresAt: now.Add(time.Second)}
		if !tok.ValidAt(now) {
			t.Error("token expiring in 1s must be valid")
		}
	})

	t.Run("new token gets default ttl", func(t *testing.T) {
		tok := New("TRT2", nil, now, 0)
		if got := tok.ExpiresAt.Sub(tok.AcquiredAt); got != DefaultTTL {
			t.Errorf("expected %v validity window, got %v", DefaultTTL, got)
		}
		if !tok.ExpiresAt.After(tok.AcquiredAt) {
			t.Error("expires_at must be after acquired_at")
		}
	})
}

func newTestCache(t *testing.T, at time.Time) *FileCache {
	t.Helper()
	cache, err := NewFileCache(filepath.Join(t.TempDir(), "session_tokens.json"))
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	return cache.WithClock(testClock(at))
}

func TestFileCache(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cookies := []Cookie{{Name: "JSESSIONID", Value: "abc123", Domain: "pje.trt2.jus.br"}}

	t.Run("store then load", func(t *testing.T) {
		cache := newTestCache(t, now)
		tok := New("TRT2", cookies, now, time.Hour)

		if err := cache.Store("TRT2", tok); err != nil {
			t.Fatalf("store: %v", err)
		}

		loaded, ok := cache.Load("TRT2")
		if !ok {
			t.Fatal("expected a cache hit")
		}
		if len(loaded.Cookies) != 1 || loaded.Cookies[0].Value != "abc123" {
			t.Errorf("unexpected cookies: %+v", loaded.Cookies)
		}
	})

	t.Run("missing system is a miss", func(t *testing.T) {
		cache := newTestCache(t, now)
		if _, ok := cache.Load("TRT15"); ok {
			t.Error("expected a miss for an unknown system")
		}
	})

	t.Run("expired token is a miss", func(t *testing.T) {
		cache := newTestCache(t, now)
		tok := New("TRT2", cookies, now.Add(-2*time.Hour), time.Hour)
		if err := cache.Store("TRT2", tok); err != nil {
			t.Fatalf("store: %v", err)
		}

		if _, ok := cache.Load("TRT2"); ok {
			t.Error("expected expired token to be treated as absent")
		}
	})

	t.Run("corrupt file is a miss not an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "session_tokens.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
			t.Fatalf("writing corrupt file: %v", err)
		}
		cache, err := NewFileCache(path)
		if err != nil {
			t.Fatalf("creating cache: %v", err)
		}
		cache = cache.WithClock(testClock(now))

		if _, ok := cache.Load("TRT2"); ok {
			t.Error("expected corrupt data to read as a miss")
		}

		// A store over corrupt data must succeed and leave a readable file.
		if err := cache.Store("TRT2", New("TRT2", cookies, now, time.Hour)); err != nil {
			t.Fatalf("store over corrupt file: %v", err)
		}
		if _, ok := cache.Load("TRT2"); !ok {
			t.Error("expected a hit after rewriting corrupt cache")
		}
	})

	t.Run("invalidate forces re-authentication", func(t *testing.T) {
		cache := newTestCache(t, now)
		if err := cache.Store("TRT2", New("TRT2", cookies, now, time.Hour)); err != nil {
			t.Fatalf("store: %v", err)
		}
		if err := cache.Invalidate("TRT2"); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
		if _, ok := cache.Load("TRT2"); ok {
			t.Error("expected a miss after invalidate")
		}
	})

	t.Run("store is per system", func(t *testing.T) {
		cache := newTestCache(t, now)
		if err := cache.Store("TRT2", New("TRT2", cookies, now, time.Hour)); err != nil {
			t.Fatalf("store TRT2: %v", err)
		}
		if err := cache.Store("TRT15", New("TRT15", cookies, now, time.Hour)); err != nil {
			t.Fatalf("store TRT15: %v", err)
		}
		if err := cache.Invalidate("TRT2"); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
		if _, ok := cache.Load("TRT15"); !ok {
			t.Error("invalidating one system must not drop the other")
		}
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		dir := t.TempDir()
		cache, err := NewFileCache(filepath.Join(dir, "session_tokens.json"))
		if err != nil {
			t.Fatalf("creating cache: %v", err)
		}
		cache = cache.WithClock(testClock(now))
		if err := cache.Store("TRT2", New("TRT2", cookies, now, time.Hour)); err != nil {
			t.Fatalf("store: %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("readdir: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected only the cache file in %s, found %d entries", dir, len(entries))
		}
	})
}

func TestMemoryCache(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := NewMemory(testClock(now))

	if err := cache.Store("TRT2", New("TRT2", nil, now, time.Hour)); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, ok := cache.Load("TRT2"); !ok {
		t.Error("expected a hit")
	}
	if err := cache.Invalidate("TRT2"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok := cache.Load("TRT2"); ok {
		t.Error("expected a miss after invalidate")
	}
}

func TestFileCacheEncryption(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cookies := []Cookie{{Name: "JSESSIONID", Value: "secret-session", Domain: "pje.trt2.jus.br"}}

	t.Run("sealed cache round trips and hides cookies", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session_tokens.json")
		cache, err := NewFileCache(path)
		if err != nil {
			t.Fatalf("creating cache: %v", err)
		}
		cache.WithClock(testClock(now)).WithEncryptor(crypto.NewEncryptor("passphrase"))

		if err := cache.Store("TRT2", New("TRT2", cookies, now, time.Hour)); err != nil {
			t.Fatalf("store: %v", err)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(raw), "secret-session") {
			t.Error("cache file leaks cookie values")
		}

		loaded, ok := cache.Load("TRT2")
		if !ok {
			t.Fatal("expected a cache hit")
		}
		if loaded.Cookies[0].Value != "secret-session" {
			t.Errorf("cookie = %q", loaded.Cookies[0].Value)
		}
	})

	t.Run("wrong passphrase is a miss, not a crash", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session_tokens.json")
		cache, err := NewFileCache(path)
		if err != nil {
			t.Fatalf("creating cache: %v", err)
		}
		cache.WithClock(testClock(now)).WithEncryptor(crypto.NewEncryptor("right"))
		if err := cache.Store("TRT2", New("TRT2", cookies, now, time.Hour)); err != nil {
			t.Fatalf("store: %v", err)
		}

		other, err := NewFileCache(path)
		if err != nil {
			t.Fatalf("creating cache: %v", err)
		}
		other.WithClock(testClock(now)).WithEncryptor(crypto.NewEncryptor("wrong"))
		if _, ok := other.Load("TRT2"); ok {
			t.Error("expected a miss under the wrong passphrase")
		}
	})

	t.Run("plain cache survives enabling encryption", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session_tokens.json")
		plain, err := NewFileCache(path)
		if err != nil {
			t.Fatalf("creating cache: %v", err)
		}
		plain.WithClock(testClock(now))
		if err := plain.Store("TRT2", New("TRT2", cookies, now, time.Hour)); err != nil {
			t.Fatalf("store: %v", err)
		}

		sealed, err := NewFileCache(path)
		if err != nil {
			t.Fatalf("creating cache: %v", err)
		}
		sealed.WithClock(testClock(now)).WithEncryptor(crypto.NewEncryptor("passphrase"))
		if _, ok := sealed.Load("TRT2"); !ok {
			t.Error("pre-encryption cache entries should still load")
		}
	})
}
