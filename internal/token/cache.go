package token

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rmoreira/hearing-sync/internal/crypto"
)

const (
	cacheFileMode = 0o600
	cacheDirMode  = 0o700
	tempPattern   = ".session-tokens-*.json.tmp"
)

// Cache persists and validates session tokens per court system.
type Cache interface {
	// Load returns the cached token for a system. The second result is false
	// when no token is cached, the stored data is malformed, or the token has
	// expired. Load never fails: corrupt state is a miss.
	Load(systemID string) (Token, bool)

	// Store persists a token, overwriting any prior entry for the same system.
	Store(systemID string, tok Token) error

	// Invalidate removes the cached token for a system, forcing interactive
	// authentication on the next Load.
	Invalidate(systemID string) error
}

// FileCache stores all systems' tokens in one JSON file on disk, optionally
// sealed with a passphrase-derived key.
type FileCache struct {
	path string
	now  func() time.Time
	mu   *sync.Mutex
	enc  *crypto.Encryptor
}

// Writes to the same cache file from concurrent runs in one process are
// serialized through a shared per-path lock.
var (
	lockRegistryMu sync.Mutex
	pathLocks      = map[string]*sync.Mutex{}
)

func lockForPath(path string) *sync.Mutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()
	if mu, ok := pathLocks[path]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	pathLocks[path] = mu
	return mu
}

// NewFileCache creates a file-backed cache at path. A leading "~/" expands to
// the user's home directory.
func NewFileCache(path string) (*FileCache, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving cache path: %w", err)
	}
	return &FileCache{path: abs, now: time.Now, mu: lockForPath(abs)}, nil
}

// WithClock replaces the cache's time source. Tests use this to exercise
// expiry boundaries deterministically.
func (c *FileCache) WithClock(now func() time.Time) *FileCache {
	c.now = now
	return c
}

// WithEncryptor seals the cache file with the given encryptor. Cookies are
// live portal credentials, so installations sharing a machine set a cache
// passphrase. A nil encryptor keeps the file plain JSON.
func (c *FileCache) WithEncryptor(enc *crypto.Encryptor) *FileCache {
	c.enc = enc
	return c
}

func (c *FileCache) Load(systemID string) (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.read()
	tok, ok := entries[systemID]
	if !ok {
		return Token{}, false
	}
	if !tok.ValidAt(c.now()) {
		return Token{}, false
	}
	return tok, true
}

func (c *FileCache) Store(systemID string, tok Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.read()
	entries[systemID] = tok
	return c.write(entries)
}

func (c *FileCache) Invalidate(systemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.read()
	if _, ok := entries[systemID]; !ok {
		return nil
	}
	delete(entries, systemID)
	return c.write(entries)
}

// read loads the cache file. Missing or corrupt files yield an empty map, as
// does a sealed file whose passphrase does not match.
func (c *FileCache) read() map[string]Token {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return map[string]Token{}
	}
	data, err = c.enc.Open(data)
	if err != nil {
		return map[string]Token{}
	}
	var entries map[string]Token
	if err := json.Unmarshal(data, &entries); err != nil || entries == nil {
		return map[string]Token{}
	}
	return entries
}

// write persists the cache atomically: encode to a temp file in the same
// directory, then rename over the destination.
func (c *FileCache) write(entries map[string]Token) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, cacheDirMode); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token cache: %w", err)
	}
	data, err = c.enc.Seal(data)
	if err != nil {
		return fmt.Errorf("sealing token cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp cache file: %w", err)
	}
	if err := tmp.Chmod(cacheFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting cache file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("replacing token cache: %w", err)
	}
	cleanup = false
	return nil
}

// Memory is an in-memory Cache for tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Token
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache using the given time source.
// A nil now defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{entries: map[string]Token{}, now: now}
}

func (m *Memory) Load(systemID string) (Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.entries[systemID]
	if !ok || !tok.ValidAt(m.now()) {
		return Token{}, false
	}
	return tok, true
}

func (m *Memory) Store(systemID string, tok Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[systemID] = tok
	return nil
}

func (m *Memory) Invalidate(systemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, systemID)
	return nil
}
