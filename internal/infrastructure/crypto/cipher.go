package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/taskvault/core/internal/infrastructure/logger"
)

// ErrDecryption is returned when an envelope is structurally malformed
// or its authentication tag does not verify.
var ErrDecryption = errors.New("decryption failed")

const (
	nonceSize = 12 // standard GCM nonce
	tagSize   = 16 // GCM authentication tag
	separator = ":"
)

// Cipher performs authenticated field-level encryption with AES-256-GCM.
// Envelopes are serialized as nonce:tag:ciphertext, each hex-encoded.
type Cipher struct {
	aead   cipher.AEAD
	logger *logger.Logger
}

// New creates a Cipher from a 32-byte key. Key length is validated by
// the config layer before this is reached, but a wrong-sized key still
// fails here rather than at the first Encrypt call.
func New(key []byte, log *logger.Logger) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("cipher key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Cipher{aead: aead, logger: log}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the
// serialized envelope.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the tag to the ciphertext; split it out so the
	// stored format matches nonce:tag:ciphertext.
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, separator), nil
}

// Decrypt opens an envelope produced by Encrypt. It returns
// ErrDecryption when the envelope is malformed or the tag does not
// verify.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, separator)
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: malformed envelope", ErrDecryption)
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", fmt.Errorf("%w: invalid nonce", ErrDecryption)
	}

	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: invalid tag", ErrDecryption)
	}

	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext", ErrDecryption)
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	return string(plaintext), nil
}

// SafeDecrypt is the tolerant read path. Values that do not look like
// envelopes (no separators) pass through unchanged, which keeps legacy
// plaintext rows readable. When a value looks like an envelope but does
// not decrypt, the stored text is returned as-is; that masks key
// mismatch or corruption as data, so the failure is logged rather than
// silently swallowed. Callers needing strict behavior use Decrypt.
func (c *Cipher) SafeDecrypt(value string) string {
	if value == "" || strings.Count(value, separator) != 2 {
		return value
	}

	plaintext, err := c.Decrypt(value)
	if err != nil {
		if c.logger != nil {
			c.logger.Warnw("Field decryption failed, returning stored value",
				"error", err.Error(),
			)
		}
		return value
	}

	return plaintext
}
