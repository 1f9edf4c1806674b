package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ErrCrypto is returned for every encryption or decryption failure. The
// cause is deliberately not exposed so callers cannot distinguish a tag
// mismatch from malformed input.
var ErrCrypto = errors.New("cipher: unable to process data")

// ErrEncoding is returned by Decode for malformed percent-encoded input.
// Encoding is a transport concern, not a cryptographic one, so its
// failures stay distinguishable from ErrCrypto.
var ErrEncoding = errors.New("cipher: malformed encoded data")

const (
	nonceLength    = 12
	tagLength      = 12
	iterationCount = 65536
	keyLength      = 32
)

// Cipher provides authenticated encryption of opaque strings using
// AES-256-GCM keyed by a password-derived secret. Safe for unrestricted
// concurrent use; the key is derived once at construction.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the AES key from the configured password and salt.
func NewCipher(password, salt string) (*Cipher, error) {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterationCount, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrCrypto
	}
	aead, err := cipher.NewGCMWithTagSize(block, tagLength)
	if err != nil {
		return nil, ErrCrypto
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh random nonce and returns
// base64(nonce || ciphertext || tag). Blank input passes through as an
// empty string so optional-token call sites need no special casing.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if strings.TrimSpace(plaintext) == "" {
		return "", nil
	}

	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", ErrCrypto
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It fails closed with ErrCrypto on malformed
// base64, short input or tag mismatch and never returns partial plaintext.
func (c *Cipher) Decrypt(encrypted string) (string, error) {
	if strings.TrimSpace(encrypted) == "" {
		return "", nil
	}

	decoded, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrCrypto
	}
	if len(decoded) < nonceLength+tagLength {
		return "", ErrCrypto
	}

	nonce, sealed := decoded[:nonceLength], decoded[nonceLength:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrCrypto
	}
	return string(plaintext), nil
}

// Encode percent-encodes text for safe embedding in a URL query value.
// Not a cryptographic step; email links apply Encrypt then Encode.
func (c *Cipher) Encode(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return url.QueryEscape(text)
}

// Decode reverses Encode.
func (c *Cipher) Decode(encoded string) (string, error) {
	if strings.TrimSpace(encoded) == "" {
		return "", nil
	}
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", ErrEncoding
	}
	return decoded, nil
}
