// Package secret keeps the SMTP relay credentials encrypted at rest, readable
// only by the OS account that stored them.
package secret

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var (
	// ErrNotFound is returned when no credentials have been stored yet.
	ErrNotFound = errors.New("credentials not found")
	// ErrDecrypt is returned when the stored credentials cannot be opened,
	// typically because another OS user created them.
	ErrDecrypt = errors.New("failed to decrypt credentials")
)

const (
	envelopeVersion = 1
	keyFileSize     = 32
	saltSize        = 16
	nonceSize       = 24

	// scrypt parameters
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Credentials authenticate against the mail relay.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type envelope struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Box     []byte `json:"box"`
}

// Store reads and writes one encrypted credentials file.
type Store struct {
	// Path is the encrypted credentials file.
	Path string
	// KeyPath holds random key material private to the OS user.
	KeyPath string

	currentUser func() (string, error)
}

// NewStore creates a store for path with the key file in the user's config
// directory.
func NewStore(path string) *Store {
	return &Store{
		Path:        path,
		KeyPath:     DefaultKeyPath(),
		currentUser: osUsername,
	}
}

// DefaultKeyPath returns <user config dir>/onboard/secret.key.
func DefaultKeyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "onboard", "secret.key")
}

func osUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to determine current user: %w", err)
	}
	return u.Username, nil
}

// Save encrypts creds and writes them with owner-only permissions, creating
// the key file on first use.
func (s *Store) Save(creds Credentials) error {
	material, err := s.keyMaterial(true)
	if err != nil {
		return err
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := deriveKey(material, salt)
	if err != nil {
		return err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	env := envelope{
		Version: envelopeVersion,
		Salt:    salt,
		Box:     secretbox.Seal(nonce[:], plaintext, &nonce, key),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Load decrypts the stored credentials.
func (s *Store) Load() (Credentials, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, fmt.Errorf("%w: %s", ErrNotFound, s.Path)
		}
		return Credentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Credentials{}, fmt.Errorf("%w: malformed file: %v", ErrDecrypt, err)
	}
	if env.Version != envelopeVersion || len(env.Box) < nonceSize {
		return Credentials{}, fmt.Errorf("%w: unsupported file format", ErrDecrypt)
	}

	material, err := s.keyMaterial(false)
	if err != nil {
		return Credentials{}, err
	}
	key, err := deriveKey(material, env.Salt)
	if err != nil {
		return Credentials{}, err
	}

	var nonce [nonceSize]byte
	copy(nonce[:], env.Box[:nonceSize])
	plaintext, ok := secretbox.Open(nil, env.Box[nonceSize:], &nonce, key)
	if !ok {
		return Credentials{}, fmt.Errorf("%w: stored by a different user or key file changed", ErrDecrypt)
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return creds, nil
}

// keyMaterial returns the key file contents followed by the OS username.
func (s *Store) keyMaterial(create bool) ([]byte, error) {
	currentUser := s.currentUser
	if currentUser == nil {
		currentUser = osUsername
	}
	name, err := currentUser()
	if err != nil {
		return nil, err
	}

	keyData, err := os.ReadFile(s.KeyPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && create:
		keyData = make([]byte, keyFileSize)
		if _, err := io.ReadFull(rand.Reader, keyData); err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(s.KeyPath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create key directory: %w", err)
		}
		if err := os.WriteFile(s.KeyPath, keyData, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write key file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: key file %s missing", ErrDecrypt, s.KeyPath)
	default:
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	return append(keyData, []byte(name)...), nil
}

func deriveKey(material, salt []byte) (*[32]byte, error) {
	k, err := scrypt.Key(material, salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	var key [32]byte
	copy(key[:], k)
	return &key, nil
}
