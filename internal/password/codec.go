// Package password encodes and verifies password hashes in Django's
// pbkdf2_sha256 format:
//
//	pbkdf2_sha256$<iterations>$<salt>$<base64 key>
//
// Hashes written by Django verify here and vice versa.
package password

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/semaphore"

	"go-auth-webhook/internal/model"
)

const (
	Algorithm         = "pbkdf2_sha256"
	DefaultIterations = 100000

	keyLength   = 32
	saltLength  = 12
	saltEntropy = 10
	separator   = "$"
)

// GenerateSalt returns a 12 character printable salt drawn from crypto/rand.
func GenerateSalt() (string, error) {
	buf := make([]byte, saltEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: read random salt: %v", model.ErrCrypto, err)
	}

	return base64.StdEncoding.EncodeToString(buf)[:saltLength], nil
}

// Encode derives a key from password and serialises it with its parameters.
func Encode(password string, salt string, iterations int) (string, error) {
	if iterations < 1 {
		return "", fmt.Errorf("%w: iterations must be positive, got %d", model.ErrCrypto, iterations)
	}
	if salt == "" || strings.Contains(salt, separator) {
		return "", fmt.Errorf("%w: salt must be non-empty and must not contain %q", model.ErrCrypto, separator)
	}

	key := derive(password, salt, iterations)
	return strings.Join([]string{
		Algorithm,
		strconv.Itoa(iterations),
		salt,
		base64.StdEncoding.EncodeToString(key),
	}, separator), nil
}

// Verify reports whether password matches encoded. Malformed hashes never
// match.
func Verify(password string, encoded string) bool {
	parsed, ok := parse(encoded)
	if !ok {
		return false
	}

	derived := derive(password, parsed.salt, parsed.iterations)
	return subtle.ConstantTimeCompare(derived, parsed.key) == 1
}

// NeedsUpgrade reports whether encoded was produced with a lower cost than
// iterations, or is not a hash this package understands.
func NeedsUpgrade(encoded string, iterations int) bool {
	parsed, ok := parse(encoded)
	if !ok {
		return true
	}
	return parsed.iterations < iterations
}

type encodedHash struct {
	iterations int
	salt       string
	key        []byte
}

func parse(encoded string) (encodedHash, bool) {
	parts := strings.Split(encoded, separator)
	if len(parts) != 4 || parts[0] != Algorithm {
		return encodedHash{}, false
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 {
		return encodedHash{}, false
	}

	if parts[2] == "" {
		return encodedHash{}, false
	}

	key, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(key) != keyLength {
		return encodedHash{}, false
	}

	return encodedHash{iterations: iterations, salt: parts[2], key: key}, true
}

func derive(password string, salt string, iterations int) []byte {
	return pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLength, sha256.New)
}

type Options struct {
	Iterations    int
	MaxConcurrent int
}

// Codec bounds how many key derivations run at once so a burst of logins
// cannot starve every CPU.
type Codec struct {
	iterations int
	sem        *semaphore.Weighted
}

func NewCodec(opts Options) *Codec {
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultIterations
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = runtime.GOMAXPROCS(0)
	}

	return &Codec{
		iterations: opts.Iterations,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}
}

func (c *Codec) Iterations() int {
	return c.iterations
}

// Hash salts and encodes password with the configured iteration count.
func (c *Codec) Hash(ctx context.Context, password string) (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	return c.Encode(ctx, password, salt, c.iterations)
}

func (c *Codec) Encode(ctx context.Context, password string, salt string, iterations int) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	return Encode(password, salt, iterations)
}

// Verify is the bounded form of Verify. The returned error is only ever the
// context's error while waiting for a derivation slot.
func (c *Codec) Verify(ctx context.Context, password string, encoded string) (bool, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer c.sem.Release(1)

	return Verify(password, encoded), nil
}
