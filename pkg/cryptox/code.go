// Package cryptox implements generation and verification of the numeric
// login codes. Codes are hashed with Argon2id before storage and verified
// with a constant-time comparison.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for login codes. Codes are short-lived, rate limited
// and single use, so these sit at the fast end of the recommended range.
const (
	saltLength  = 16
	iterations  = 2
	memory      = 19 * 1024 // KiB
	parallelism = 1
	keyLength   = 32
)

// MaxCodeLength bounds the configurable code length so the generated value
// fits in an int64.
const MaxCodeLength = 18

var ErrInvalidCodeLength = errors.New("cryptox: code length out of range")

// GenerateCode returns a uniformly random numeric code of exactly length
// digits, left-padded with zeros. The value is drawn from crypto/rand.
func GenerateCode(length int) (string, error) {
	if length < 1 || length > MaxCodeLength {
		return "", ErrInvalidCodeLength
	}

	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", fmt.Errorf("cryptox: failed to generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n), nil
}

// HashCode returns a PHC-format Argon2id hash of the code, including salt
// and parameters.
func HashCode(code string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(code), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyCode reports whether code matches the PHC-encoded Argon2id hash.
// The underlying digest comparison is constant time.
func VerifyCode(code, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")

	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", salt, hash]
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(code), salt, iters, mem, par, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// DummyCodeHash returns a fixed, well-formed hash of a value no generated
// code can ever equal. Verification paths that have no stored hash compare
// against it so their cost is indistinguishable from the real case.
func DummyCodeHash() string {
	dummyOnce.Do(func() {
		h, err := HashCode("no-code-issued")
		if err != nil {
			panic(fmt.Sprintf("cryptox: failed to derive dummy hash: %v", err))
		}
		dummyHash = h
	})
	return dummyHash
}
