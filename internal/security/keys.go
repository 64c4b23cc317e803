package security

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"strings"
)

// ErrInvalidKey is returned when PEM, key type, or secret is unusable.
var ErrInvalidKey = errors.New("invalid key")

// SigningConfig selects the token signing material. A key pair wins over a secret.
type SigningConfig struct {
	Secret     string
	PrivateKey string // inline PEM or file path
	PublicKey  string // inline PEM or file path
	Issuer     string
	Audience   string
}

// NewTokenProviderFromConfig builds an asymmetric provider when both keys are
// set and an HS256 provider otherwise.
func NewTokenProviderFromConfig(c SigningConfig) (*TokenProvider, error) {
	if c.PrivateKey != "" && c.PublicKey != "" {
		signer, err := ParsePrivateKey(c.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err := ParsePublicKey(c.PublicKey)
		if err != nil {
			return nil, err
		}
		return NewTokenProvider(signer, pub, c.Issuer, c.Audience)
	}
	return NewHMACTokenProvider([]byte(c.Secret), c.Issuer, c.Audience)
}

// LoadPEM reads content from path if s does not look like inline PEM; otherwise returns s as bytes.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(s), nil
	}
	return os.ReadFile(s)
}

// ParsePrivateKey parses a PEM-encoded private key (RSA or ECDSA).
func ParsePrivateKey(s string) (crypto.Signer, error) {
	block, err := decodePEM(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, ErrInvalidKey
		}
		return signer, nil
	default:
		return nil, ErrInvalidKey
	}
}

// ParsePublicKey parses a PEM-encoded public key (RSA or ECDSA).
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	block, err := decodePEM(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	default:
		return nil, ErrInvalidKey
	}
}

func decodePEM(s string) (*pem.Block, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	return block, nil
}
