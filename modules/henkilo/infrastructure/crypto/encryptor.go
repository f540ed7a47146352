// Package crypto seals national identifiers at rest. Only the dedup
// hash is ever compared; the ciphertext exists for lawful retrieval.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

type AESEncryptor struct {
	aead cipher.AEAD
}

// NewAESEncryptor builds an AES-256-GCM sealer from a hex-encoded key.
func NewAESEncryptor(hexKey string) (*AESEncryptor, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("hetu cipher key is not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("hetu cipher key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESEncryptor{aead: aead}, nil
}

// Seal encrypts the identifier with a fresh nonce prepended to the
// ciphertext.
func (e *AESEncryptor) Seal(hetu string) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return e.aead.Seal(nonce, nonce, []byte(hetu), nil), nil
}

// Open decrypts a sealed identifier.
func (e *AESEncryptor) Open(sealed []byte) (string, error) {
	if len(sealed) < e.aead.NonceSize() {
		return "", fmt.Errorf("sealed hetu too short")
	}
	nonce, ciphertext := sealed[:e.aead.NonceSize()], sealed[e.aead.NonceSize():]
	plain, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
