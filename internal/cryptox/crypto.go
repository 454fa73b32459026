// Package cryptox holds the symmetric and password cryptography shared by
// the server and the client: AES-GCM sealing of JSON payloads, X25519 key
// agreement for per-peer session keys, and argon2id password hashing.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
)

// ErrCiphertextTooShort is returned when sealed data cannot even hold a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Seal encrypts plaintext with AES-GCM under key and returns nonce||ciphertext.
//
// The key must be a valid AES key length (16, 24, or 32 bytes). A fresh
// random nonce is generated for every call.
func Seal(plaintext, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal. Any tampering with nonce or ciphertext yields an error.
func Open(sealed, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	ns := aesgcm.NonceSize()
	if len(sealed) < ns+aesgcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	return aesgcm.Open(nil, sealed[:ns], sealed[ns:], nil)
}

// EncryptEntry serializes entry to JSON and seals it under key.
//
// Example:
//
//	bundle := packet.Properties{"username": "alice", "password": "secret"}
//	data, err := EncryptEntry(bundle, peerKey)
func EncryptEntry(entry any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return Seal(plaintext, key)
}

// DecryptEntry opens data sealed by EncryptEntry and unmarshals the JSON
// into v.
func DecryptEntry(data, key []byte, v any) error {
	plaintext, err := Open(data, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
