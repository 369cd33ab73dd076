package transform

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
)

// chaCha20Transform obfuscates payloads with an unauthenticated ChaCha20
// keystream. A fresh nonce is generated per Apply and prepended to the
// output. Unlike aesgcm it adds no authentication tag, so it is the cheaper
// choice when integrity is handled elsewhere.
type chaCha20Transform struct{ key []byte }

func NewChaCha20Transform(passphrase string) (Transform, error) {
	return &chaCha20Transform{key: keyFromPassphrase(passphrase)}, nil
}

func (c *chaCha20Transform) Apply(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("chacha20 apply (encrypt): failed to generate nonce: %w", err)
	}
	stream, err := chacha20.NewUnauthenticatedCipher(c.key, nonce)
	if err != nil {
		return nil, fmt.Errorf("chacha20 apply (encrypt): failed to create cipher: %w", err)
	}
	out := make([]byte, chacha20.NonceSize+len(plaintext))
	copy(out, nonce)
	stream.XORKeyStream(out[chacha20.NonceSize:], plaintext)
	return out, nil
}

func (c *chaCha20Transform) Reverse(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < chacha20.NonceSize {
		return nil, errors.New("chacha20 reverse (decrypt): ciphertext too short")
	}
	nonce, body := ciphertext[:chacha20.NonceSize], ciphertext[chacha20.NonceSize:]
	stream, err := chacha20.NewUnauthenticatedCipher(c.key, nonce)
	if err != nil {
		return nil, fmt.Errorf("chacha20 reverse (decrypt): failed to create cipher: %w", err)
	}
	out := make([]byte, len(body))
	stream.XORKeyStream(out, body)
	return out, nil
}
