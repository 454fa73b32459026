package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// SessionKeyInfo is the HKDF context string for per-peer session keys.
const SessionKeyInfo = "gophmaster peer session key"

// KeyPair is an ephemeral X25519 key pair used once per connection.
type KeyPair struct {
	private [curve25519.ScalarSize]byte
	Public  []byte
}

// NewKeyPair generates a fresh X25519 key pair.
func NewKeyPair() (*KeyPair, error) {
	kp := &KeyPair{}
	if _, err := rand.Read(kp.private[:]); err != nil {
		return nil, err
	}

	pub, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	kp.Public = pub

	return kp, nil
}

// SharedKey combines the private half of kp with the remote public key and
// stretches the result into a 32-byte AES key bound to info.
func (kp *KeyPair) SharedKey(remotePublic []byte, info string) ([]byte, error) {
	if len(remotePublic) != curve25519.PointSize {
		return nil, errors.New("invalid public key size")
	}

	secret, err := curve25519.X25519(kp.private[:], remotePublic)
	if err != nil {
		return nil, err
	}

	return DeriveKey(secret, info, 32)
}

// DeriveKey expands secret into size bytes with HKDF-SHA256 under info.
func DeriveKey(secret []byte, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
