// Package encryption implements the Message Cipher used to protect message
// content in transit.
package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"hire-chat/domain/chat"
	"hire-chat/errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher seals message content with XChaCha20-Poly1305.
// The 24-byte random nonce is what clients receive as the IV.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(key []byte) (*Cipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrEncryption, err)
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromPassphrase derives the key with Argon2id then builds the cipher.
func NewCipherFromPassphrase(passphrase, salt string) (*Cipher, error) {
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	return NewCipher(key)
}

func (c *Cipher) Encrypt(plaintext string) (chat.EncryptedContent, error) {
	iv := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return chat.EncryptedContent{}, fmt.Errorf("%w: %v", errors.ErrEncryption, err)
	}
	return chat.EncryptedContent{
		Ciphertext: c.aead.Seal(nil, iv, []byte(plaintext), nil),
		IV:         iv,
	}, nil
}

func (c *Cipher) Decrypt(content chat.EncryptedContent) (string, error) {
	if len(content.IV) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: iv must be %d bytes", errors.ErrEncryption, c.aead.NonceSize())
	}
	plaintext, err := c.aead.Open(nil, content.IV, content.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrEncryption, err)
	}
	return string(plaintext), nil
}
