package auth

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/argon2"
)

// ErrEmptyPassword is returned when hashing an empty string.
var ErrEmptyPassword = errors.New("password must not be empty")

// Hasher derives password hashes with Argon2id, using the server secret as
// the salt. Equal passwords therefore hash to equal strings, which is what
// lets the services compare hashes instead of plaintext.
type Hasher struct {
	secret  []byte
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
}

// HasherOption tunes the Argon2 cost parameters.
type HasherOption func(*Hasher)

// WithArgon2Params overrides the default cost (1 pass, 64 MiB, 4 lanes).
func WithArgon2Params(time, memoryKiB uint32, threads uint8) HasherOption {
	return func(h *Hasher) {
		h.time = time
		h.memory = memoryKiB
		h.threads = threads
	}
}

// NewHasher returns a Hasher keyed with secret.
func NewHasher(secret string, opts ...HasherOption) *Hasher {
	h := &Hasher{
		secret:  []byte(secret),
		time:    1,
		memory:  64 * 1024,
		threads: 4,
		keyLen:  32,
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Hash returns the hex encoded Argon2id key of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	key := argon2.IDKey([]byte(plaintext), h.secret, h.time, h.memory, h.threads, h.keyLen)

	return hex.EncodeToString(key), nil
}
