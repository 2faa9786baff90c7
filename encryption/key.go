package encryption

import (
	"fmt"
	"hire-chat/errors"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters based on OWASP recommendations
const (
	Memory        = 64 * 1024 // 64 MB
	Iterations    = 3
	Parallelism   = 2
	MinSaltLength = 16
	KeyLength     = 32
)

// DeriveKey stretches a passphrase into a 256-bit key.
// The same passphrase and salt always give the same key, so every server
// instance sharing the configuration can decrypt what the others produced.
func DeriveKey(passphrase, salt string) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: empty passphrase", errors.ErrEncryption)
	}
	if len(salt) < MinSaltLength {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes", errors.ErrEncryption, MinSaltLength)
	}
	return argon2.IDKey([]byte(passphrase), []byte(salt), Iterations, Memory, Parallelism, KeyLength), nil
}
