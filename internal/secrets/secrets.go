// internal/secrets/secrets.go
//
// Envelope encryption for per-workspace connection strings.
//
// Context
// -------
// The catalog stores each workspace's DSN as ciphertext.  A single
// application master key never encrypts two workspaces' secrets under the
// same derived key: the workspace id is mixed in as HKDF salt, so a
// ciphertext copied between workspace rows fails to decrypt.  The derived
// key feeds AES-256-GCM; ciphertexts are base64 with the nonce prepended.
//
// Decryption is deliberately the slow path.  The tenant connection cache
// compares raw ciphertext fingerprints on every hit and only calls
// `Decrypt` on a miss or after credential rotation.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the required master-key length: 256 bits for AES-256.
const KeySize = 32

// hkdfInfo provides domain separation from any other HKDF use of the
// master key.  Changing it invalidates every stored ciphertext.
const hkdfInfo = "quackback-tenant-dsn-v1"

var (
	ErrInvalidKey        = errors.New("secrets: master key must be 32 bytes")
	ErrInvalidCiphertext = errors.New("secrets: malformed ciphertext")
	ErrDecryptFailed     = errors.New("secrets: decryption failed")
)

// Service derives per-workspace keys from one master key.  Safe for
// concurrent use; construct once at boot and inject.
type Service struct {
	masterKey []byte
}

// New validates the master key and returns a Service.
func New(masterKey []byte) (*Service, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKey
	}
	key := make([]byte, KeySize)
	copy(key, masterKey)
	return &Service{masterKey: key}, nil
}

// Encrypt seals plaintext under the workspace-scoped key and returns
// standard base64.  Used by provisioning and by tests; the request path
// only ever decrypts.
func (s *Service) Encrypt(plaintext, workspaceID string) (string, error) {
	gcm, err := s.aead(workspaceID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64 ciphertext produced by Encrypt for the same
// workspace id.  A mismatched workspace id yields ErrDecryptFailed, not a
// wrong plaintext.
func (s *Service) Decrypt(ciphertext, workspaceID string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	gcm, err := s.aead(workspaceID)
	if err != nil {
		return "", err
	}

	if len(raw) < gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

// aead builds the workspace-scoped AES-GCM instance.
func (s *Service) aead(workspaceID string) (cipher.AEAD, error) {
	derived := make([]byte, KeySize)
	r := hkdf.New(sha256.New, s.masterKey, []byte(workspaceID), []byte(hkdfInfo))
	if _, err := io.ReadFull(r, derived); err != nil {
		return nil, fmt.Errorf("secrets: derive key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("secrets: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
