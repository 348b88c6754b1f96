// Package secret seals profile passwords at rest with AES-256-GCM.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	sealedPrefix = "v2:"
	legacyPrefix = "enc:"
	keyringUser  = "profile-sealing-key"
	keySize      = 32
)

var (
	ErrInvalidKey    = errors.New("sealing key must be 32 bytes, base64 encoded")
	ErrSealedPayload = errors.New("sealed secret is malformed or was sealed with another key")
)

// legacyKey reads values written by the previous console, which obfuscated
// secrets with a fixed XOR key. They are re-sealed on the next write.
var legacyKey = []byte("data_check_sql_tool_key")

// Box seals and opens secrets.
type Box struct {
	aead cipher.AEAD
}

// NewBox builds a Box from a raw 32-byte key.
func NewBox(key []byte) (*Box, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext. Empty input stays empty.
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a stored value. Legacy and unprefixed values are accepted.
func (b *Box) Open(stored string) (string, error) {
	switch {
	case stored == "":
		return "", nil
	case strings.HasPrefix(stored, sealedPrefix):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
		if err != nil || len(raw) < b.aead.NonceSize() {
			return "", ErrSealedPayload
		}
		nonce, ciphertext := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
		plain, err := b.aead.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return "", ErrSealedPayload
		}
		return string(plain), nil
	default:
		return OpenLegacy(stored)
	}
}

// NeedsReseal reports whether stored predates the current format.
func NeedsReseal(stored string) bool {
	return stored != "" && !strings.HasPrefix(stored, sealedPrefix)
}

// OpenLegacy reads an "enc:" value or returns an unprefixed value as is.
// It needs no key.
func OpenLegacy(stored string) (string, error) {
	if !strings.HasPrefix(stored, legacyPrefix) {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, legacyPrefix))
	if err != nil {
		return "", fmt.Errorf("decode legacy secret: %w", err)
	}
	out := make([]byte, len(raw))
	for i, c := range raw {
		out[i] = c ^ legacyKey[i%len(legacyKey)]
	}
	return string(out), nil
}

// DecodeKey parses a base64 key from configuration.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil || len(key) != keySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// GenerateKey returns a fresh base64 key.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// LoadKey returns the configured key, or the key stored in the OS keychain
// under service. A missing keychain entry is created.
func LoadKey(configured, service string) ([]byte, error) {
	if configured != "" {
		return DecodeKey(configured)
	}

	stored, err := keyring.Get(service, keyringUser)
	if err == nil {
		return DecodeKey(stored)
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("read keychain: %w", err)
	}

	fresh, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := keyring.Set(service, keyringUser, fresh); err != nil {
		return nil, fmt.Errorf("store key in keychain: %w", err)
	}
	return DecodeKey(fresh)
}
