// Package crypto provides end-to-end encryption for synced payloads.
// Payloads are encrypted with AES-256-GCM under a data encryption key that
// never leaves the devices; the key is derived from a passphrase via
// Argon2id, or shared between devices by X25519 ECDH + HKDF key wrapping.
// The server only ever sees sealed bytes.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// keyLen is the AES-256 key length in bytes.
	keyLen = 32
	// nonceLen is the GCM nonce length in bytes.
	nonceLen = 12
	// saltLen is the Argon2id salt length in bytes.
	saltLen = 32
	// hkdfInfo is the info string for HKDF key derivation.
	hkdfInfo = "lift-sync-key-wrap"

	// Argon2id parameters.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// GenerateKeyPair generates an X25519 keypair for key exchange.
func GenerateKeyPair() (*ecdh.PrivateKey, *ecdh.PublicKey, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate x25519 key: %w", err)
	}
	return priv, priv.PublicKey(), nil
}

// Encrypt encrypts plaintext using AES-256-GCM with a 256-bit key.
// Returns nonce || ciphertext (nonce is prepended).
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != keyLen {
		return nil, errors.New("key must be 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("random nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	if len(key) != keyLen {
		return nil, errors.New("key must be 32 bytes")
	}

	if len(ciphertext) < nonceLen {
		return nil, errors.New("ciphertext too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	nonce := ciphertext[:nonceLen]
	ct := ciphertext[nonceLen:]

	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	return plaintext, nil
}

// PayloadCipher seals and opens sync payloads with a fixed data encryption
// key. It satisfies the remote client's Cipher interface.
type PayloadCipher struct {
	key []byte
}

// NewPayloadCipher creates a cipher around a 256-bit data encryption key.
func NewPayloadCipher(dek []byte) (*PayloadCipher, error) {
	if len(dek) != keyLen {
		return nil, errors.New("data encryption key must be 32 bytes")
	}
	key := make([]byte, keyLen)
	copy(key, dek)
	return &PayloadCipher{key: key}, nil
}

// Seal encrypts a payload for upload.
func (p *PayloadCipher) Seal(plaintext []byte) ([]byte, error) {
	return Encrypt(p.key, plaintext)
}

// Open decrypts a downloaded payload.
func (p *PayloadCipher) Open(ciphertext []byte) ([]byte, error) {
	return Decrypt(p.key, ciphertext)
}

// deriveSharedKey performs ECDH and derives an AES-256 key via HKDF-SHA256.
func deriveSharedKey(priv *ecdh.PrivateKey, pub *ecdh.PublicKey) ([]byte, error) {
	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}

	r := hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo))
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}

	return key, nil
}

// WrapKey wraps a data encryption key for another device:
// senderPriv + recipientPub -> shared secret -> HKDF-derived AES key -> encrypt DEK.
func WrapKey(senderPriv *ecdh.PrivateKey, recipientPub *ecdh.PublicKey, dek []byte) ([]byte, error) {
	aesKey, err := deriveSharedKey(senderPriv, recipientPub)
	if err != nil {
		return nil, fmt.Errorf("derive wrap key: %w", err)
	}
	return Encrypt(aesKey, dek)
}

// UnwrapKey unwraps a data encryption key received from another device.
func UnwrapKey(recipientPriv *ecdh.PrivateKey, senderPub *ecdh.PublicKey, wrappedDEK []byte) ([]byte, error) {
	aesKey, err := deriveSharedKey(recipientPriv, senderPub)
	if err != nil {
		return nil, fmt.Errorf("derive unwrap key: %w", err)
	}
	return Decrypt(aesKey, wrappedDEK)
}

// ParsePublicKey parses a 32-byte X25519 public key.
func ParsePublicKey(b []byte) (*ecdh.PublicKey, error) {
	pub, err := ecdh.X25519().NewPublicKey(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return pub, nil
}

// ParsePrivateKey parses a 32-byte X25519 private key.
func ParsePrivateKey(b []byte) (*ecdh.PrivateKey, error) {
	priv, err := ecdh.X25519().NewPrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return priv, nil
}

// EncodeGrant bundles the sender's ephemeral public key and the wrapped data
// encryption key into a single copy-pasteable string for device enrollment.
func EncodeGrant(senderPub *ecdh.PublicKey, wrappedDEK []byte) string {
	return hex.EncodeToString(senderPub.Bytes()) + "." + hex.EncodeToString(wrappedDEK)
}

// DecodeGrant splits a grant back into the sender's public key and the
// wrapped data encryption key.
func DecodeGrant(grant string) (*ecdh.PublicKey, []byte, error) {
	pubHex, wrappedHex, ok := strings.Cut(grant, ".")
	if !ok {
		return nil, nil, errors.New("malformed grant")
	}
	pubBytes, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, nil, fmt.Errorf("decode grant public key: %w", err)
	}
	pub, err := ParsePublicKey(pubBytes)
	if err != nil {
		return nil, nil, err
	}
	wrapped, err := hex.DecodeString(wrappedHex)
	if err != nil {
		return nil, nil, fmt.Errorf("decode grant key material: %w", err)
	}
	return pub, wrapped, nil
}

// DeriveKeyFromPassphrase derives a 256-bit key from a passphrase using
// Argon2id. Returns the derived key and the random salt used.
func DeriveKeyFromPassphrase(passphrase string) (key, salt []byte, err error) {
	salt = make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, fmt.Errorf("random salt: %w", err)
	}

	key = argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLen)
	return key, salt, nil
}

// DeriveKeyFromPassphraseWithSalt derives a key using a known salt, for
// re-deriving the same key on another device.
func DeriveKeyFromPassphraseWithSalt(passphrase string, salt []byte) ([]byte, error) {
	if len(salt) != saltLen {
		return nil, fmt.Errorf("salt must be %d bytes", saltLen)
	}
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLen), nil
}

// GenerateDEK generates a random 256-bit data encryption key.
func GenerateDEK() ([]byte, error) {
	dek := make([]byte, keyLen)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, fmt.Errorf("random dek: %w", err)
	}
	return dek, nil
}
