package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TokenClaims is the verified content of a bearer token.
type TokenClaims struct {
	Subject  string
	IssuedAt time.Time
}

// TokenSigner issues and verifies HS256 bearer tokens with a fixed expiry
// policy. Secret and expiry are injected once at construction.
type TokenSigner struct {
	secret    []byte
	expiresIn time.Duration
	issuer    string
	now       func() time.Time
}

func NewTokenSigner(secret string, expiresIn time.Duration, issuer string) *TokenSigner {
	return &TokenSigner{
		secret:    []byte(secret),
		expiresIn: expiresIn,
		issuer:    issuer,
		now:       time.Now,
	}
}

// Sign creates a signed token for the given subject id.
func (s *TokenSigner) Sign(subject string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"iss": s.issuer,
		"exp": now.Add(s.expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the token's subject and
// issued-at time. Expired tokens are reported as ErrTokenExpired so callers
// can message them apart from tampered ones.
func (s *TokenSigner) Verify(tokenStr string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		// enforce HMAC signing method
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, ErrTokenInvalid
	}

	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return &TokenClaims{
		Subject:  sub,
		IssuedAt: time.Unix(int64(iat), 0),
	}, nil
}
