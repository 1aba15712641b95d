// Package soft holds signing keys in process memory, loaded from config.
// Production deployments can swap in a KMS-backed manager behind the same
// crypto.PrivateKey interface.
package soft

import (
	stdcrypto "crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"wipetrace/internal/infra/crypto"
)

type Manager struct {
	rsaKey *rsa.PrivateKey
	edKey  ed25519.PrivateKey
}

// NewManagerFromPEM parses an unencrypted private key in PKCS#1 or PKCS#8
// form. RSA keys sign as SHA256withRSA, ed25519 keys as ed25519.
func NewManagerFromPEM(pemText string) (*Manager, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("no PEM block in signing key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &Manager{rsaKey: key}, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	switch key := parsed.(type) {
	case *rsa.PrivateKey:
		return &Manager{rsaKey: key}, nil
	case ed25519.PrivateKey:
		return &Manager{edKey: key}, nil
	}
	return nil, fmt.Errorf("unsupported signing key type %T", parsed)
}

// NewEphemeralRSA generates a throwaway RSA key for tests and dev mode.
func NewEphemeralRSA() (*Manager, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &Manager{rsaKey: key}, nil
}

// NewEphemeralEd25519 generates a throwaway ed25519 key.
func NewEphemeralEd25519() (*Manager, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Manager{edKey: key}, nil
}

func (m *Manager) Algorithm() string {
	if m != nil && m.edKey != nil {
		return crypto.AlgEd25519
	}
	return crypto.AlgRSASHA256
}

func (m *Manager) Sign(payload []byte) ([]byte, error) {
	switch {
	case m == nil:
		return nil, errors.New("key manager is nil")
	case m.rsaKey != nil:
		digest := sha256.Sum256(payload)
		return rsa.SignPKCS1v15(rand.Reader, m.rsaKey, stdcrypto.SHA256, digest[:])
	case m.edKey != nil:
		return ed25519.Sign(m.edKey, payload), nil
	}
	return nil, errors.New("no private key loaded")
}

func (m *Manager) PublicKeyPEM() (string, error) {
	var pub any
	switch {
	case m == nil:
		return "", errors.New("key manager is nil")
	case m.rsaKey != nil:
		pub = &m.rsaKey.PublicKey
	case m.edKey != nil:
		pub = m.edKey.Public()
	default:
		return "", errors.New("no private key loaded")
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

var _ crypto.PrivateKey = (*Manager)(nil)
