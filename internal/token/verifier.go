package token

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"go-auth-webhook/internal/model"
)

// Verifier checks tokens against a single RSA public key. It never needs
// the private key, so tokens minted by another process holding the same
// key pair verify as well.
type Verifier struct {
	cfg    Config
	key    *rsa.PublicKey
	keys   *keyfunc.JWKS
	parser *jwt.Parser
}

func NewVerifier(cfg Config, key *rsa.PublicKey) (*Verifier, error) {
	if key == nil {
		return nil, errors.New("verification key is required")
	}

	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if cfg.KeyID == "" {
		cfg.KeyID = KeyID(key)
	}

	alg := jwt.SigningMethodRS256.Alg()
	keys := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		cfg.KeyID: keyfunc.NewGivenCustom(key, keyfunc.GivenKeyOptions{Algorithm: alg}),
	})

	return &Verifier{
		cfg:  cfg,
		key:  key,
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{alg}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(cfg.Now),
		),
	}, nil
}

// Verify validates signature, algorithm and expiry and returns the claim set
// embedded under the namespace. A token is valid while now < exp.
func (v *Verifier) Verify(tokenString string) (model.ClaimSet, error) {
	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFor); err != nil {
		return model.ClaimSet{}, classify(err)
	}

	return v.extract(claims)
}

// KeySet is the discovery document for the verification key.
func (v *Verifier) KeySet() JWKS {
	return KeySet(v.key, v.cfg.KeyID)
}

func (v *Verifier) Namespace() string {
	return v.cfg.Namespace
}

// keyFor resolves tokens carrying a kid through the pinned key set. Tokens
// without one predate key ids and fall back to the configured key; the
// parser's method allow-list still applies to both paths.
func (v *Verifier) keyFor(token *jwt.Token) (any, error) {
	if _, ok := token.Header["kid"]; ok {
		return v.keys.Keyfunc(token)
	}
	if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.key, nil
}

func (v *Verifier) extract(claims jwt.MapClaims) (model.ClaimSet, error) {
	raw, ok := claims[v.cfg.Namespace]
	if !ok {
		return model.ClaimSet{}, fmt.Errorf("%w: missing %q claims", model.ErrMalformedToken, v.cfg.Namespace)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return model.ClaimSet{}, fmt.Errorf("%w: %v", model.ErrMalformedToken, err)
	}

	var set model.ClaimSet
	if err := json.Unmarshal(data, &set); err != nil {
		return model.ClaimSet{}, fmt.Errorf("%w: decode claims: %v", model.ErrMalformedToken, err)
	}

	if set.UserID == "" || len(set.AllowedRoles) == 0 || !set.Allows(set.DefaultRole) {
		return model.ClaimSet{}, fmt.Errorf("%w: incomplete claim set", model.ErrMalformedToken)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject != subjectPrefix+set.UserID {
		return model.ClaimSet{}, fmt.Errorf("%w: subject %q does not match user id %q", model.ErrMalformedToken, subject, set.UserID)
	}

	return set, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", model.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", model.ErrMalformedToken, err)
	default:
		return fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}
}
