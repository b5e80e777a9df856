// Package crypto seals the session jar with a passphrase.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	// KeySize is the AES-256 key length
	KeySize = 32
	// NonceSize is the GCM nonce length
	NonceSize = 12
	// SaltSize is the scrypt salt length
	SaltSize = 16
	// MinPassphraseLength is enforced by ValidatePassphrase
	MinPassphraseLength = 12

	envelopeScheme = "scrypt"
	verifierPlain  = "tonectl-passphrase-check"
)

// ErrWrongPassphrase is returned when sealed data cannot be opened
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted data")

// Params are the scrypt cost parameters
type Params struct {
	N int
	R int
	P int
}

// DefaultParams follow the scrypt package recommendation for interactive logins
var DefaultParams = Params{N: 1 << 15, R: 8, P: 1}

// Sealer encrypts and decrypts blobs with a key derived from a passphrase.
// Every Seal uses a fresh salt and nonce.
type Sealer struct {
	passphrase []byte
	params     Params
}

// NewSealer creates a sealer with DefaultParams
func NewSealer(passphrase string) *Sealer {
	return NewSealerWithParams(passphrase, DefaultParams)
}

// NewSealerWithParams creates a sealer with explicit scrypt costs
func NewSealerWithParams(passphrase string, params Params) *Sealer {
	return &Sealer{passphrase: []byte(passphrase), params: params}
}

// Seal encrypts plaintext into a self-describing text envelope:
// scrypt$N$r$p$base64(salt|nonce|ciphertext)
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := s.aead(salt, s.params)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	blob := make([]byte, 0, SaltSize+NonceSize+len(plaintext)+gcm.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, plaintext, nil)

	return fmt.Sprintf("%s$%d$%d$%d$%s", envelopeScheme, s.params.N, s.params.R, s.params.P,
		base64.StdEncoding.EncodeToString(blob)), nil
}

// Open decrypts an envelope produced by Seal
func (s *Sealer) Open(envelope string) ([]byte, error) {
	params, blob, err := parseEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	if len(blob) < SaltSize+NonceSize+1 {
		return nil, fmt.Errorf("sealed data too short: %d bytes", len(blob))
	}

	salt := blob[:SaltSize]
	nonce := blob[SaltSize : SaltSize+NonceSize]
	ciphertext := blob[SaltSize+NonceSize:]

	gcm, err := s.aead(salt, params)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

// Close wipes the passphrase from memory
func (s *Sealer) Close() {
	SecureZero(s.passphrase)
}

func (s *Sealer) aead(salt []byte, params Params) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.passphrase, salt, params.N, params.R, params.P, KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer SecureZero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// IsSealed reports whether data looks like a Seal envelope
func IsSealed(data []byte) bool {
	return strings.HasPrefix(string(data), envelopeScheme+"$")
}

func parseEnvelope(envelope string) (Params, []byte, error) {
	parts := strings.Split(strings.TrimSpace(envelope), "$")
	if len(parts) != 5 || parts[0] != envelopeScheme {
		return Params{}, nil, fmt.Errorf("not a sealed envelope")
	}

	var nums [3]int
	for i, raw := range parts[1:4] {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Params{}, nil, fmt.Errorf("invalid scrypt parameter %q", raw)
		}
		nums[i] = n
	}

	blob, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return Params{N: nums[0], R: nums[1], P: nums[2]}, blob, nil
}

// HashPassphrase returns a verifier for passphrase suitable for storing in
// config. It never contains the passphrase itself.
func HashPassphrase(passphrase string) (string, error) {
	return NewSealer(passphrase).Seal([]byte(verifierPlain))
}

// VerifyPassphrase checks passphrase against a HashPassphrase verifier
func VerifyPassphrase(passphrase, verifier string) bool {
	plain, err := NewSealer(passphrase).Open(verifier)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(plain, []byte(verifierPlain)) == 1
}

// ValidatePassphrase enforces the minimum passphrase length
func ValidatePassphrase(passphrase string) error {
	if len(passphrase) < MinPassphraseLength {
		return fmt.Errorf("passphrase must be at least %d characters long", MinPassphraseLength)
	}
	return nil
}

// SecureZero overwrites a sensitive byte slice
func SecureZero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
