// Package credstore persists the vision backend API key encrypted at rest.
// The blob is AES-256-GCM with a key derived from a local passphrase via
// scrypt; a fresh salt and nonce are written on every save.
package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"

	"github.com/screenwise/screenwise/types"
)

const (
	blobVersion = 1
	saltLen     = 16

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
	keyLen  = 32
)

// Store reads and writes one encrypted credential file.
type Store struct {
	path       string
	passphrase []byte
}

// NewStore creates a store at path. The passphrase is held for key
// derivation; it never touches disk.
func NewStore(path string, passphrase []byte) *Store {
	return &Store{path: path, passphrase: passphrase}
}

// Save encrypts apiKey and writes the blob with owner-only permissions.
func (s *Store) Save(apiKey string) error {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	blob := make([]byte, 0, 1+saltLen+len(nonce)+len(apiKey)+gcm.Overhead())
	blob = append(blob, blobVersion)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, []byte(apiKey), nil)

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create credential dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, blob, 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}

// Load decrypts and returns the stored API key. A missing file yields a
// NO_CREDENTIAL typed error so callers can gate analysis on it.
func (s *Store) Load() (string, error) {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", types.NewError(types.ErrNoCredential, "no stored credential")
		}
		return "", fmt.Errorf("read credential file: %w", err)
	}

	if len(blob) < 1+saltLen {
		return "", types.NewError(types.ErrNoCredential, "credential file truncated")
	}
	if blob[0] != blobVersion {
		return "", types.NewError(types.ErrNoCredential,
			fmt.Sprintf("unsupported credential blob version %d", blob[0]))
	}
	salt := blob[1 : 1+saltLen]

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	rest := blob[1+saltLen:]
	if len(rest) < gcm.NonceSize() {
		return "", types.NewError(types.ErrNoCredential, "credential file truncated")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	key, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// Wrong passphrase and corruption are indistinguishable here.
		return "", types.NewError(types.ErrNoCredential, "credential decryption failed").
			WithCause(err)
	}
	return string(key), nil
}

// Clear removes the credential file. Missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}

func (s *Store) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return gcm, nil
}
