package crypto

import (
	stdcrypto "crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"wipetrace/internal/domain"
)

const (
	AlgRSASHA256 = "SHA256withRSA"
	AlgEd25519   = "ed25519"
)

// PrivateKey abstracts the signing key material so key storage stays out of
// the crypto service (soft keys today, a KMS-backed manager later).
type PrivateKey interface {
	Algorithm() string
	Sign(payload []byte) ([]byte, error)
	PublicKeyPEM() (string, error)
}

type Service struct {
	Key PrivateKey
}

func NewService(key PrivateKey) *Service {
	return &Service{Key: key}
}

// certificatePayload is the exact field set a certificate signature covers.
// All fields are immutable after generation.
type certificatePayload struct {
	CertificateID string                  `json:"certificate_id"`
	IssuedTo      domain.IssuedTo         `json:"issued_to"`
	Devices       []domain.DeviceSnapshot `json:"devices"`
	Validity      validityPayload         `json:"validity_period"`
	CreatedAt     string                  `json:"created_at"`
}

type validityPayload struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CanonicalCertificatePayload serializes the signed subset of a certificate
// deterministically. Timestamps are pinned to RFC3339Nano UTC so the bytes do
// not depend on the zone the record was loaded in.
func CanonicalCertificatePayload(cert domain.Certificate) ([]byte, error) {
	payload := certificatePayload{
		CertificateID: cert.CertificateID,
		IssuedTo:      cert.IssuedTo,
		Devices:       cert.Devices,
		Validity: validityPayload{
			Start: cert.Validity.Start.UTC().Format(time.RFC3339Nano),
			End:   cert.Validity.End.UTC().Format(time.RFC3339Nano),
		},
		CreatedAt: cert.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if payload.Devices == nil {
		payload.Devices = []domain.DeviceSnapshot{}
	}
	return Canonicalize(payload)
}

// SignCertificate computes the digital signature block for a certificate.
func (s *Service) SignCertificate(cert domain.Certificate) (domain.DigitalSignature, error) {
	if s == nil || s.Key == nil {
		return domain.DigitalSignature{}, errors.New("signing key not configured")
	}
	payload, err := CanonicalCertificatePayload(cert)
	if err != nil {
		return domain.DigitalSignature{}, err
	}
	sig, err := s.Key.Sign(payload)
	if err != nil {
		return domain.DigitalSignature{}, err
	}
	pubPEM, err := s.Key.PublicKeyPEM()
	if err != nil {
		return domain.DigitalSignature{}, err
	}
	return domain.DigitalSignature{
		Algorithm: s.Key.Algorithm(),
		Signature: base64.StdEncoding.EncodeToString(sig),
		PublicKey: pubPEM,
	}, nil
}

// VerifyCertificate recomputes the canonical payload and checks the stored
// signature against the stored public key. Malformed input is a normal
// negative outcome, never an error.
func VerifyCertificate(cert domain.Certificate) bool {
	payload, err := CanonicalCertificatePayload(cert)
	if err != nil {
		return false
	}
	return VerifyDetached(payload, cert.Signature)
}

// VerifyDetached checks sig over payload. It returns false for unknown
// algorithms, bad encodings, and key/signature mismatches alike.
func VerifyDetached(payload []byte, sig domain.DigitalSignature) bool {
	sigBytes, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil {
		return false
	}
	pub, err := parsePublicKeyPEM(sig.PublicKey)
	if err != nil {
		return false
	}
	switch sig.Algorithm {
	case AlgRSASHA256:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return false
		}
		digest := sha256.Sum256(payload)
		return rsa.VerifyPKCS1v15(rsaPub, stdcrypto.SHA256, digest[:], sigBytes) == nil
	case AlgEd25519:
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok || len(edPub) != ed25519.PublicKeySize || len(sigBytes) != ed25519.SignatureSize {
			return false
		}
		return ed25519.Verify(edPub, payload, sigBytes)
	}
	return false
}

func parsePublicKeyPEM(pemText string) (any, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return pub, nil
}
