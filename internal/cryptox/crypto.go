// Package cryptox seals small secrets at rest, such as TOTP seeds, with
// AES-256-GCM under a key derived from the server configuration.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"golang.org/x/crypto/argon2"
)

// ErrMalformed is returned by Open for input that is too short or does not
// authenticate under the box key.
var ErrMalformed = errors.New("sealed data is malformed or was tampered with")

// DeriveKey stretches a configured passphrase into a 32-byte AES key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// Box encrypts with a fixed key. Each Seal draws a fresh random nonce.
type Box struct {
	aead cipher.AEAD
}

// NewBox accepts 16, 24 or 32 byte keys.
func NewBox(key []byte) (*Box, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead}, nil
}

// Seal returns nonce || ciphertext.
func (b *Box) Seal(plaintext []byte) []byte {
	nonce := common.GenerateRandByteArray(b.aead.NonceSize())
	return b.aead.Seal(nonce, nonce, plaintext, nil)
}

// Open reverses Seal.
func (b *Box) Open(sealed []byte) ([]byte, error) {
	ns := b.aead.NonceSize()
	if len(sealed) < ns+b.aead.Overhead() {
		return nil, ErrMalformed
	}
	plaintext, err := b.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, ErrMalformed
	}
	return plaintext, nil
}
