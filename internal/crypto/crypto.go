// Package crypto encrypts the session token cache at rest. Cached cookies
// are live portal credentials, so the cache file can optionally be sealed
// with a passphrase-derived AES-256-GCM key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 100000
	keySize    = 32 // AES-256
)

// magic prefixes sealed files so Open can tell an encrypted cache from a
// plain JSON one left over from before the passphrase was set.
var magic = []byte("HSENC1\x00")

var ErrWrongPassphrase = errors.New("cache passphrase does not match")

// Encryptor seals and opens byte blobs. A nil Encryptor passes data through
// unchanged, so callers never need to branch on whether encryption is on.
type Encryptor struct {
	key []byte
}

// NewEncryptor derives an AES-256 key from the passphrase. An empty
// passphrase yields a nil pass-through Encryptor.
func NewEncryptor(passphrase string) *Encryptor {
	if passphrase == "" {
		return nil
	}
	salt := sha256.Sum256([]byte("hearing-sync-cache:" + passphrase))
	key := pbkdf2.Key([]byte(passphrase), salt[:], iterations, keySize, sha256.New)
	return &Encryptor{key: key}
}

// Seal encrypts plaintext with AES-GCM and prefixes the result with the
// format magic.
func (e *Encryptor) Seal(plaintext []byte) ([]byte, error) {
	if e == nil {
		return plaintext, nil
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(magic)+gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	out = append(out, magic...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal. Data without the format magic is
// returned unchanged, which lets an existing plaintext cache survive the
// first run after a passphrase is configured.
func (e *Encryptor) Open(data []byte) ([]byte, error) {
	if e == nil || !hasMagic(data) {
		return data, nil
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	body := data[len(magic):]
	if len(body) < gcm.NonceSize() {
		return nil, errors.New("sealed cache truncated")
	}
	nonce, ciphertext := body[:gcm.NonceSize()], body[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

// Sealed reports whether data carries the encrypted-cache format magic.
func Sealed(data []byte) bool {
	return hasMagic(data)
}

func hasMagic(data []byte) bool {
	if len(data) < len(magic) {
		return false
	}
	for i, b := range magic {
		if data[i] != b {
			return false
		}
	}
	return true
}
