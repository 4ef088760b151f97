// Package crypto provides the credential cipher used for SMTP passwords.
// The Cipher is an explicit capability object constructed once at process
// start and passed into whatever needs it; there is no package-level
// singleton or lazy initialization.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	keyLength  = 32 // AES-256
	saltLength = 16
)

// Cipher encrypts and decrypts short secrets with AES-256-GCM. A fresh salt
// per message derives a one-off key from the master key via scrypt, so
// identical plaintexts never share ciphertext.
//
// Wire format: base64(salt || nonce || sealed), where sealed carries the
// GCM auth tag.
type Cipher struct {
	masterKey []byte
}

// NewCipher builds a Cipher from a base64- or hex-encoded master key of at
// least 16 bytes. Keys that are not exactly 32 bytes are stretched to 32
// with scrypt.
func NewCipher(encodedKey string) (*Cipher, error) {
	if encodedKey == "" {
		return nil, fmt.Errorf("encryption key is empty")
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		key, err = hex.DecodeString(encodedKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key must be base64 or hex encoded")
		}
	}
	if len(key) < 16 {
		return nil, fmt.Errorf("encryption key must be at least 16 bytes")
	}
	if len(key) != keyLength {
		salt := make([]byte, saltLength)
		key, err = scrypt.Key(key, salt, 1<<15, 8, 1, keyLength)
		if err != nil {
			return nil, fmt.Errorf("stretch encryption key: %w", err)
		}
	}

	return &Cipher{masterKey: key}, nil
}

// Encrypt seals the plaintext and returns the encoded ciphertext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(data) < saltLength {
		return "", fmt.Errorf("ciphertext too short")
	}

	salt := data[:saltLength]
	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	rest := data[saltLength:]
	if len(rest) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plaintext), nil
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	derived, err := scrypt.Key(c.masterKey, salt, 1<<15, 8, 1, keyLength)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
