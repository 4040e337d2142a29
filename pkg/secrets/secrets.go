// Package secrets encrypts values that site owners commit to their public
// configuration, such as the reCAPTCHA secret.
//
// Ciphertexts are base64(nonce || secretbox(plaintext)). The same plaintext
// encrypts to a different ciphertext every time.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrInvalidCiphertext is returned when a value cannot be opened with the key.
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Box encrypts and decrypts with a single symmetric key.
type Box struct {
	key  [32]byte
	rand io.Reader
}

// New creates a Box from a raw 32-byte key.
func New(key [32]byte) *Box {
	return &Box{key: key, rand: rand.Reader}
}

// FromPassphrase derives the key as SHA-256 of passphrase.
func FromPassphrase(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	return New(sha256.Sum256([]byte(passphrase))), nil
}

// Encrypt seals plaintext and returns the encoded ciphertext.
func (b *Box) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(b.rand, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt implements core.Decrypter.
func (b *Box) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCiphertext, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidCiphertext
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}

var _ core.Decrypter = (*Box)(nil)
