// Package crypto provides wallet seed management: encrypting the trading
// account's seed at rest and resolving it at startup.
package crypto

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
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// aesKeyLen is the derived AES-256 key length.
	aesKeyLen = 32
	// currentVersion is the encrypted-seed JSON schema version.
	currentVersion = 1
)

// encryptedSeedJSON is the on-disk format for an encrypted wallet seed.
type encryptedSeedJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// SeedConfig carries the information LoadSeed needs to resolve the wallet
// seed. Populate the fields from environment variables or a config file.
type SeedConfig struct {
	// RawSeed is the plaintext wallet seed. If non-empty, LoadSeed returns
	// it directly.
	RawSeed string

	// EncryptedSeedPath is the path to a JSON file produced by EncryptSeed.
	EncryptedSeedPath string

	// SeedPassword is the password used to decrypt the file at
	// EncryptedSeedPath.
	SeedPassword string
}

// validateSeed applies a shape check on a wallet seed: family seeds are
// base58 strings starting with 's'.
func validateSeed(seed string) error {
	if !strings.HasPrefix(seed, "s") || len(seed) < 20 {
		return errors.New("crypto: value does not look like a wallet seed")
	}
	return nil
}

// EncryptSeed encrypts a wallet seed with a password using
// PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM authenticated
// encryption. It returns the JSON blob suitable for writing to disk.
func EncryptSeed(seed, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if err := validateSeed(seed); err != nil {
		return nil, err
	}

	// Generate random salt and derive AES key.
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	// AES-256-GCM encrypt.
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(seed), nil)

	out := encryptedSeedJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}

	return json.MarshalIndent(out, "", "  ")
}

// DecryptSeed decrypts a JSON blob produced by EncryptSeed, returning the
// plaintext seed.
func DecryptSeed(encryptedJSON []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: password must not be empty")
	}

	var stored encryptedSeedJSON
	if err := json.Unmarshal(encryptedJSON, &stored); err != nil {
		return "", fmt.Errorf("crypto: parsing encrypted seed JSON: %w", err)
	}
	if stored.Version != currentVersion {
		return "", fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return "", fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("crypto: creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}

	seed := string(plaintext)
	if err := validateSeed(seed); err != nil {
		return "", err
	}
	return seed, nil
}

// LoadSeed resolves the wallet seed from the provided configuration.
//
// Resolution order:
//  1. If RawSeed is set, validate and return it.
//  2. If EncryptedSeedPath is set, read the file and decrypt with
//     SeedPassword.
//  3. Otherwise, return an error.
func LoadSeed(cfg SeedConfig) (string, error) {
	// 1. Raw seed takes precedence.
	if cfg.RawSeed != "" {
		if err := validateSeed(cfg.RawSeed); err != nil {
			return "", err
		}
		return cfg.RawSeed, nil
	}

	// 2. Encrypted seed file.
	if cfg.EncryptedSeedPath != "" {
		data, err := os.ReadFile(cfg.EncryptedSeedPath)
		if err != nil {
			return "", fmt.Errorf("crypto: reading encrypted seed file: %w", err)
		}
		return DecryptSeed(data, cfg.SeedPassword)
	}

	return "", errors.New("crypto: no seed source configured (set RawSeed or EncryptedSeedPath)")
}
