// Package tokens mints lease access tokens. Only the sha256 hash of a token is stored;
// the plaintext is handed to the consumer once.
package tokens

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const OpaquePrefix = "tok_"

// Grant describes the lease a token is minted for.
type Grant struct {
	LeaseID         string
	ResourceID      string
	ConsumerActorID string
	IssuedAt        time.Time
	ExpiresAt       time.Time
}

type Issuer interface {
	Issue(g Grant) (string, error)
}

// OpaqueIssuer mints "tok_" followed by 32 random bytes, base64url without padding.
type OpaqueIssuer struct{}

func (OpaqueIssuer) Issue(Grant) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return OpaquePrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// LeaseClaims are the claims of a JWT lease token.
type LeaseClaims struct {
	ResourceID string `json:"rid"`
	jwt.RegisteredClaims
}

// JWTIssuer mints HS256 tokens providers can check offline with the shared secret.
type JWTIssuer struct {
	secret []byte
	issuer string
}

func NewJWTIssuer(secret, issuer string) *JWTIssuer {
	return &JWTIssuer{secret: []byte(secret), issuer: issuer}
}

func (j *JWTIssuer) Issue(g Grant) (string, error) {
	claims := LeaseClaims{
		ResourceID: g.ResourceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        g.LeaseID,
			Issuer:    j.issuer,
			Subject:   g.ConsumerActorID,
			IssuedAt:  jwt.NewNumericDate(g.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(g.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign lease token: %w", err)
	}
	return signed, nil
}

// Parse validates a token minted by Issue and returns its claims.
func (j *JWTIssuer) Parse(token string) (*LeaseClaims, error) {
	claims := &LeaseClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(j.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.Expired("lease token expired")
		}
		return nil, domain.AuthRequired("invalid lease token")
	}
	return claims, nil
}
