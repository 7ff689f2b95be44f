package replica

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealAlgorithm identifies the AEAD of a sealed frame. Values are written on
// the wire.
type SealAlgorithm uint8

const (
	SealAESGCM  SealAlgorithm = 1
	SealXChaCha SealAlgorithm = 2
)

// String returns the name used in configuration.
func (a SealAlgorithm) String() string {
	switch a {
	case SealAESGCM:
		return "aes-gcm"
	case SealXChaCha:
		return "xchacha20-poly1305"
	default:
		return fmt.Sprintf("unknown(%d)", a)
	}
}

// ParseSealAlgorithm parses an algorithm from its configuration name.
func ParseSealAlgorithm(name string) (SealAlgorithm, error) {
	switch name {
	case "aes-gcm", "aes":
		return SealAESGCM, nil
	case "xchacha20-poly1305", "xchacha":
		return SealXChaCha, nil
	default:
		return 0, fmt.Errorf("unknown seal algorithm %q", name)
	}
}

// Sealer encrypts and authenticates encoded events.
type Sealer interface {
	// Algorithm returns the tag written into sealed frames.
	Algorithm() SealAlgorithm

	// Seal encrypts plaintext and returns nonce||ciphertext.
	// aad is authenticated but not encrypted.
	Seal(plaintext, aad []byte) ([]byte, error)

	// Open reverses Seal. It fails with ErrDecryptionFailed when
	// the ciphertext or aad was altered.
	Open(sealed, aad []byte) ([]byte, error)
}

// aeadSealer implements Sealer over any AEAD with a random nonce.
type aeadSealer struct {
	alg  SealAlgorithm
	aead cipher.AEAD
}

// AESSealer returns an AES-GCM sealer.
// Key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
func AESSealer(key []byte) (Sealer, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("%w: must be 16, 24, or 32 bytes, got %d", ErrInvalidKey, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &aeadSealer{alg: SealAESGCM, aead: gcm}, nil
}

// XChaChaSealer returns an XChaCha20-Poly1305 sealer. Key must be 32 bytes.
// The 24-byte nonce makes random nonces safe for any realistic event volume.
func XChaChaSealer(key []byte) (Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKey, chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	return &aeadSealer{alg: SealXChaCha, aead: aead}, nil
}

// NewSealer returns the sealer for alg.
func NewSealer(alg SealAlgorithm, key []byte) (Sealer, error) {
	switch alg {
	case SealAESGCM:
		return AESSealer(key)
	case SealXChaCha:
		return XChaChaSealer(key)
	default:
		return nil, fmt.Errorf("%w: seal algorithm %s", ErrUnsupportedVersion, alg)
	}
}

func (s *aeadSealer) Algorithm() SealAlgorithm {
	return s.alg
}

func (s *aeadSealer) Seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// Prepend nonce to ciphertext
	return s.aead.Seal(nonce, nonce, plaintext, aad), nil
}

func (s *aeadSealer) Open(sealed, aad []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: sealed frame too short", ErrDecryptionFailed)
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}
