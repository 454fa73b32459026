package common

import (
	"crypto/rand"
	"errors"
	"math/bits"
)

// GenerateRandByteArray returns size bytes from crypto/rand.
// It panics if the system random source fails, which is not recoverable.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites the contents of b with zeros. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// RandomString returns a string of length n drawn uniformly from alphabet.
//
// Random bytes are masked down to the smallest power of two covering the
// alphabet and out-of-range values are rejected, so no character is favoured.
func RandomString(alphabet string, n int) (string, error) {
	if len(alphabet) < 2 || len(alphabet) > 256 {
		return "", errors.New("alphabet must contain between 2 and 256 characters")
	}
	if n <= 0 {
		return "", nil
	}

	mask := 1<<bits.Len(uint(len(alphabet)-1)) - 1
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			idx := int(b) & mask
			if idx < len(alphabet) {
				out = append(out, alphabet[idx])
				if len(out) == n {
					break
				}
			}
		}
	}

	return string(out), nil
}
