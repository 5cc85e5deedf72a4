package token

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWK is an RSA public key in JSON Web Key form.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

// KeySet publishes pub as the only signing key.
func KeySet(pub *rsa.PublicKey, kid string) JWKS {
	n, e := encodeRSA(pub)
	return JWKS{Keys: []JWK{{
		Kty: "RSA",
		Kid: kid,
		Use: "sig",
		Alg: jwt.SigningMethodRS256.Alg(),
		N:   n,
		E:   e,
	}}}
}

// KeyID returns the RFC 7638 thumbprint of pub.
func KeyID(pub *rsa.PublicKey) string {
	n, e := encodeRSA(pub)
	// Members in lexicographic order, no whitespace.
	canonical, _ := json.Marshal(struct {
		E   string `json:"e"`
		Kty string `json:"kty"`
		N   string `json:"n"`
	}{E: e, Kty: "RSA", N: n})

	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func encodeRSA(pub *rsa.PublicKey) (string, string) {
	n := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
	return n, e
}

// LoadPrivateKey accepts either PEM text or the path of a PEM file.
func LoadPrivateKey(value string) (*rsa.PrivateKey, error) {
	data, err := readPEM(value)
	if err != nil {
		return nil, err
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// LoadPublicKey accepts either PEM text or the path of a PEM file.
func LoadPublicKey(value string) (*rsa.PublicKey, error) {
	data, err := readPEM(value)
	if err != nil {
		return nil, err
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return key, nil
}

func readPEM(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("key is empty")
	}
	if strings.HasPrefix(trimmed, "-----BEGIN") {
		return []byte(trimmed), nil
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return data, nil
}
