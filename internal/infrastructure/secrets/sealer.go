// Package secrets seals partner credentials before they are written to the
// configuration store and opens them when the registry resolves a partner.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	sealedPrefix    = "v1:"
	plaintextPrefix = "plain:"
	keyInfo         = "uniorder credential sealing v1"
	// MinKeyLength is the minimum length of the configured master key
	MinKeyLength = 32
)

var (
	// ErrKeyTooShort is returned for master keys shorter than MinKeyLength
	ErrKeyTooShort = errors.New("secrets: encryption key must be at least 32 bytes")
	// ErrMalformed is returned for values that were not produced by a sealer
	ErrMalformed = errors.New("secrets: malformed sealed value")
	// ErrOpen is returned when authentication fails, e.g. wrong key or wrong partner
	ErrOpen = errors.New("secrets: cannot open sealed value")
)

// Sealer encrypts and decrypts small secrets. The associated data binds a
// sealed value to its owner so it cannot be replayed under another partner.
type Sealer interface {
	Seal(plaintext []byte, associatedData string) (string, error)
	Open(sealed string, associatedData string) ([]byte, error)
}

// AEADSealer uses XChaCha20-Poly1305 with a key derived from the master key by HKDF-SHA256
type AEADSealer struct {
	aead interface {
		NonceSize() int
		Overhead() int
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewAEADSealer derives the sealing key from masterKey
func NewAEADSealer(masterKey string) (*AEADSealer, error) {
	if len(masterKey) < MinKeyLength {
		return nil, ErrKeyTooShort
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(masterKey), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("secrets: derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: init cipher: %w", err)
	}
	return &AEADSealer{aead: aead}, nil
}

// Seal returns "v1:" followed by base64url(nonce || ciphertext)
func (s *AEADSealer) Seal(plaintext []byte, associatedData string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, plaintext, []byte(associatedData))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal
func (s *AEADSealer) Open(sealed string, associatedData string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return nil, ErrMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return nil, ErrMalformed
	}

	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte(associatedData))
	if err != nil {
		return nil, ErrOpen
	}
	return plaintext, nil
}

// PlaintextSealer stores values base64-encoded without encryption.
// Development only; configuration validation requires a key in production.
type PlaintextSealer struct{}

// Seal encodes plaintext
func (PlaintextSealer) Seal(plaintext []byte, _ string) (string, error) {
	return plaintextPrefix + base64.RawURLEncoding.EncodeToString(plaintext), nil
}

// Open decodes a value produced by Seal
func (PlaintextSealer) Open(sealed string, _ string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(sealed, plaintextPrefix)
	if !ok {
		return nil, ErrMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformed
	}
	return raw, nil
}

// New returns an AEADSealer when a key is configured and a PlaintextSealer otherwise
func New(masterKey string) (Sealer, error) {
	if masterKey == "" {
		return PlaintextSealer{}, nil
	}
	return NewAEADSealer(masterKey)
}

var (
	_ Sealer = (*AEADSealer)(nil)
	_ Sealer = PlaintextSealer{}
)
