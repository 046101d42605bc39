package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// KeySize is the key length required for AES-256.
const KeySize = 32

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next ports.RunStore
	// aeads holds the active key first, then the fallbacks in order.
	aeads []cipher.AEAD
}

// NewEncryptionMiddleware creates a middleware that encrypts run records using AES-GCM.
// It panics if a key is not 32 bytes long.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	keys := append([][]byte{config.ActiveKey}, config.FallbackKeys...)
	aeads := make([]cipher.AEAD, len(keys))
	for i, key := range keys {
		if len(key) != KeySize {
			panic("encryption keys must be 32 bytes (AES-256)")
		}
		aead, err := newAEAD(key)
		if err != nil {
			panic(err)
		}
		aeads[i] = aead
	}
	return func(next ports.RunStore) ports.RunStore {
		return &encryptionMiddleware{
			next:  next,
			aeads: aeads,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, run *domain.RunRecord) error {
	plainText, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	ciphertext, err := seal(m.aeads[0], plainText, []byte(run.ID))
	if err != nil {
		return fmt.Errorf("failed to encrypt run: %w", err)
	}

	// Only the fields stores index on stay readable.
	envelope := &domain.RunRecord{
		ID:         run.ID,
		Status:     run.Status,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Sealed:     ciphertext,
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	envelope, err := m.next.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(envelope.Sealed) == 0 {
		// Once encryption is configured, plain records are rejected.
		return nil, errors.New("run is missing encrypted data envelope")
	}

	plainText, err := open(m.aeads, envelope.Sealed, []byte(envelope.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt run: %w", err)
	}

	var run domain.RunRecord
	if err := json.Unmarshal(plainText, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted run: %w", err)
	}
	return &run, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal encrypts plaintext with a random nonce prepended to the result.
// The run ID is bound as additional data.
func seal(aead cipher.AEAD, plaintext, additional []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, additional), nil
}

// open tries each key in order.
func open(aeads []cipher.AEAD, ciphertext, additional []byte) ([]byte, error) {
	for _, aead := range aeads {
		if len(ciphertext) < aead.NonceSize() {
			return nil, errors.New("ciphertext too short")
		}
		nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
		if plain, err := aead.Open(nil, nonce, sealed, additional); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}
