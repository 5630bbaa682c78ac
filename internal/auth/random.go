package auth

import (
	"crypto/rand"
	"math/big"
)

// Alphabet is the character set of generated identifiers.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// IDLength is the length of token and check identifiers.
const IDLength = 20

// RandomString returns length characters drawn uniformly from Alphabet.
func RandomString(length int) (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = Alphabet[n.Int64()]
	}

	return string(result), nil
}

// IsID reports whether s has the shape of a generated identifier.
func IsID(s string) bool {
	if len(s) != IDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}

	return true
}
