// internal/crypto/cryptostore.go
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/licenseforge/licenseforge/internal/apperrors"
)

// Store encrypts license keys for storage and produces the one-way
// lookup hash used as the unique index. The AES key and the HMAC key
// are both derived from one master secret but are distinct, so a leaked
// hash key cannot decrypt stored ciphertexts.
type Store struct {
	aead    cipher.AEAD
	hashKey []byte
}

const (
	encryptionKeyInfo = "licenseforge/encryption/v1"
	hashKeyInfo       = "licenseforge/lookup-hash/v1"
)

func NewStore(masterSecret []byte) (*Store, error) {
	if len(masterSecret) == 0 {
		return nil, fmt.Errorf("master secret is empty")
	}

	encKey, err := deriveKey(masterSecret, encryptionKeyInfo)
	if err != nil {
		return nil, err
	}
	hashKey, err := deriveKey(masterSecret, hashKeyInfo)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to build AEAD: %w", err)
	}

	return &Store{aead: aead, hashKey: hashKey}, nil
}

func deriveKey(masterSecret []byte, info string) ([]byte, error) {
	reader := hkdf.New(sha256.New, masterSecret, nil, []byte(info))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key material: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM. The random nonce is
// prepended to the ciphertext and the whole value is base64 encoded.
func (s *Store) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Malformed input or a wrong key returns
// ErrDecryptionFailed; the caller treats it as recoverable since the
// license row itself is still usable.
func (s *Store) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext encoding", apperrors.ErrDecryptionFailed)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", apperrors.ErrDecryptionFailed)
	}

	nonce, sealed := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", apperrors.ErrDecryptionFailed)
	}

	return string(plaintext), nil
}

// Hash computes the deterministic HMAC-SHA256 lookup hash of a
// plaintext key, hex encoded. Not reversible, keyed separately from
// the cipher.
func (s *Store) Hash(plaintext string) string {
	mac := hmac.New(sha256.New, s.hashKey)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}
