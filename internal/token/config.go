// Package token issues and verifies the RS256 identity tokens handed to
// clients at login and presented back to the authorization webhook.
package token

import (
	"errors"
	"strconv"
	"time"
)

const (
	// DefaultTTL is the validity window of an issued token.
	DefaultTTL = 30 * 24 * time.Hour

	DefaultNamespace = "https://hasura.io/jwt/claims"

	subjectPrefix = "User-"
)

// Config is shared by Issuer and Verifier. Both sides must agree on
// Namespace.
type Config struct {
	Namespace string
	TTL       time.Duration
	KeyID     string
	Now       func() time.Time
}

func (c Config) withDefaults() (Config, error) {
	if c.Namespace == "" {
		return c, errors.New("claims namespace is required")
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c, nil
}

// Subject is the "sub" claim for a user id.
func Subject(userID int64) string {
	return subjectPrefix + strconv.FormatInt(userID, 10)
}
