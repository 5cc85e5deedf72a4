package token

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"go-auth-webhook/internal/model"
)

type Issuer struct {
	cfg Config
	key *rsa.PrivateKey
}

func NewIssuer(cfg Config, key *rsa.PrivateKey) (*Issuer, error) {
	if key == nil {
		return nil, errors.New("signing key is required")
	}

	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if cfg.KeyID == "" {
		cfg.KeyID = KeyID(&key.PublicKey)
	}

	return &Issuer{cfg: cfg, key: key}, nil
}

// Issue signs a token for user carrying claims under the configured
// namespace and returns it in the login envelope.
func (i *Issuer) Issue(user model.User, claims model.ClaimSet) (model.TokenResponse, error) {
	now := i.cfg.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"name":          user.Username,
		"sub":           Subject(user.ID),
		"iat":           jwt.NewNumericDate(now),
		"exp":           jwt.NewNumericDate(now.Add(i.cfg.TTL)),
		i.cfg.Namespace: claims.Clone(),
	})
	token.Header["kid"] = i.cfg.KeyID

	signed, err := token.SignedString(i.key)
	if err != nil {
		return model.TokenResponse{}, fmt.Errorf("%w: sign token: %v", model.ErrCrypto, err)
	}

	return model.TokenResponse{
		ID:       user.ID,
		Username: user.Username,
		Nickname: user.Nickname(),
		Token:    signed,
	}, nil
}
