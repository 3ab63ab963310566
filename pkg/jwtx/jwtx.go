// Package jwtx mints and verifies the EdDSA-signed login tokens handed to
// the host application after a completed code phase.
package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AMRTotp is the authentication method reference recorded on every token
// minted by this service.
const AMRTotp = "otp"

var (
	ErrInvalidToken = errors.New("jwtx: invalid token")
	ErrExpiredToken = errors.New("jwtx: token expired")
)

// Claims carried by a login token. Subject is the account identifier.
type Claims struct {
	SessionID string   `json:"sid"`
	AMR       []string `json:"amr"`

	jwt.RegisteredClaims
}

// Signer signs and verifies login tokens with a single Ed25519 key pair.
// Keys are ephemeral: tokens do not outlive the process that minted them,
// which is fine for a login hand-off.
type Signer struct {
	Issuer string

	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func NewEphemeralSigner(issuer string) (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to generate signing key: %w", err)
	}
	return &Signer{Issuer: issuer, priv: priv, pub: pub}, nil
}

// Mint issues a login token for the given account identifier and session.
func (s *Signer) Mint(identifier, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		AMR:       []string{AMRTotp},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   identifier,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(s.priv)
	if err != nil {
		return "", fmt.Errorf("jwtx: failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a login token minted by this signer.
func (s *Signer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("jwtx: unexpected signing method %q", t.Method.Alg())
		}
		return s.pub, nil
	}, jwt.WithIssuer(s.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
