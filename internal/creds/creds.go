// Package creds resolves venue API credentials. Adapters receive an opaque
// Credentials value at construction time; the core never reads or writes
// ambient global state to find secrets.
package creds

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// aesKeyLen is the derived AES-256 key length.
	aesKeyLen = 32
	// currentVersion is the encrypted-credentials JSON schema version.
	currentVersion = 1
)

// Credentials is an opaque API key/secret pair for one venue.
type Credentials struct {
	Key    string
	Secret string
}

// IsZero reports whether no credentials were provided.
func (c Credentials) IsZero() bool { return c.Key == "" && c.Secret == "" }

// Source carries the information Load needs to resolve credentials for one
// venue. Populate the fields from the per-venue config block.
type Source struct {
	// Key and Secret are plaintext credentials, typically injected via
	// environment variables. If Key is non-empty, Load returns them directly.
	Key    string
	Secret string

	// EncryptedPath is the path to a JSON file produced by Encrypt.
	EncryptedPath string

	// Password decrypts the file at EncryptedPath.
	Password string
}

// encryptedCredsJSON is the on-disk format for encrypted venue credentials.
type encryptedCredsJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// Encrypt encrypts a credentials pair with a password using
// PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM authenticated
// encryption. It returns the JSON blob suitable for writing to disk.
func Encrypt(c Credentials, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("creds: password must not be empty")
	}
	if c.IsZero() {
		return nil, errors.New("creds: nothing to encrypt")
	}

	plaintext, err := json.Marshal(map[string]string{"key": c.Key, "secret": c.Secret})
	if err != nil {
		return nil, fmt.Errorf("creds: marshal credentials: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("creds: generating salt: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("creds: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creds: creating GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("creds: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := encryptedCredsJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}

	return json.MarshalIndent(out, "", "  ")
}

// Decrypt decrypts a JSON blob produced by Encrypt.
func Decrypt(encryptedJSON []byte, password string) (Credentials, error) {
	if password == "" {
		return Credentials{}, errors.New("creds: password must not be empty")
	}

	var stored encryptedCredsJSON
	if err := json.Unmarshal(encryptedJSON, &stored); err != nil {
		return Credentials{}, fmt.Errorf("creds: parsing encrypted file: %w", err)
	}
	if stored.Version != currentVersion {
		return Credentials{}, fmt.Errorf("creds: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return Credentials{}, fmt.Errorf("creds: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return Credentials{}, fmt.Errorf("creds: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return Credentials{}, fmt.Errorf("creds: decoding ciphertext: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return Credentials{}, fmt.Errorf("creds: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Credentials{}, fmt.Errorf("creds: creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("creds: decryption failed (wrong password?): %w", err)
	}

	var pair struct {
		Key    string `json:"key"`
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(plaintext, &pair); err != nil {
		return Credentials{}, fmt.Errorf("creds: parsing decrypted payload: %w", err)
	}

	return Credentials{Key: pair.Key, Secret: pair.Secret}, nil
}

// Load resolves credentials from the provided source.
//
// Resolution order:
//  1. If Key is set, return Key/Secret directly.
//  2. If EncryptedPath is set, read the file and decrypt with Password.
//  3. Otherwise, return empty credentials (quote-only venues need none).
func Load(src Source) (Credentials, error) {
	if src.Key != "" {
		return Credentials{Key: src.Key, Secret: src.Secret}, nil
	}

	if src.EncryptedPath != "" {
		data, err := os.ReadFile(src.EncryptedPath)
		if err != nil {
			return Credentials{}, fmt.Errorf("creds: reading encrypted file: %w", err)
		}
		return Decrypt(data, src.Password)
	}

	return Credentials{}, nil
}
