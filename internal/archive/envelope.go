package archive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/blasperez/Private-Chat/internal/apperr"
)

// Algorithm names recorded in archive metadata.
const (
	AlgoAESGCM = "AES-256-GCM"
	AlgoNone   = "none"
)

const nonceSize = 12

// Envelope is the on-disk shape of an encrypted archive artifact. All three
// fields are base64; the plaintext, once decrypted, is a newline-delimited
// JSON transcript.
type Envelope struct {
	Algorithm  string `json:"algorithm"`
	Nonce      string `json:"nonce"`
	Tag        string `json:"tag"`
	Ciphertext string `json:"ciphertext"`
}

// Encrypt seals plaintext with AES-256-GCM under a fresh random nonce.
func Encrypt(key, plaintext []byte) (*Envelope, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	// Seal appends the tag to the ciphertext; store it separately.
	split := len(sealed) - gcm.Overhead()
	return &Envelope{
		Algorithm:  AlgoAESGCM,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Tag:        base64.StdEncoding.EncodeToString(sealed[split:]),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed[:split]),
	}, nil
}

// Decrypt is the exact inverse of Encrypt. A tag verification failure
// surfaces as an IntegrityError and never as corrupted plaintext.
func Decrypt(key []byte, env *Envelope) ([]byte, error) {
	if env.Algorithm != AlgoAESGCM {
		return nil, fmt.Errorf("unsupported archive algorithm %q", env.Algorithm)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, apperr.Integrity(err)
	}
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return nil, apperr.Integrity(err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, apperr.Integrity(err)
	}
	if len(nonce) != nonceSize || len(tag) != gcm.Overhead() {
		return nil, apperr.Integrity(errors.New("truncated envelope"))
	}

	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, apperr.Integrity(err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("archive key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
